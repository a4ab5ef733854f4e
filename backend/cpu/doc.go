// Copyright 2026 Mixture ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for tensor operations.
//
// # Overview
//
// This package implements a CPU backend with:
//   - Pure Go implementation (no CGO)
//   - Float32 and Float64 kernels, with int32/int64 where meaningful
//   - NumPy-compatible broadcasting
//   - Numerically stable softmax and reductions
//
// # Basic Usage
//
//	import (
//	    "github.com/mixture-ml/mixture/backend/cpu"
//	    "github.com/mixture-ml/mixture/tensor"
//	)
//
//	backend := cpu.New()
//	x := tensor.Randn[float32](tensor.Shape{2, 3}, backend)
package cpu
