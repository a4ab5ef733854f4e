// Copyright 2026 Mixture ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides type-safe tensor operations for the Mixture ML
// framework.
//
// # Overview
//
// Tensors are the fundamental data structure in Mixture. This package
// provides:
//   - Generic type-safe tensors (Tensor[T, B])
//   - NumPy-style broadcasting
//   - Copy-on-write raw storage with reference counting
//   - Pluggable compute backends
//
// # Basic Usage
//
//	import (
//	    "github.com/mixture-ml/mixture/tensor"
//	    "github.com/mixture-ml/mixture/backend/cpu"
//	)
//
//	backend := cpu.New()
//	x := tensor.Randn[float32](tensor.Shape{2, 3}, backend)
//	y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	z := x.Add(y)
package tensor
