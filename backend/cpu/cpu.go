// Copyright 2026 Mixture ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/mixture-ml/mixture/internal/backend/cpu"
	"github.com/mixture-ml/mixture/tensor"
)

// Backend represents the CPU backend implementation.
//
// The CPU backend provides pure Go implementations of all tensor
// operations plus the optional activation kernels (ReLU, Sigmoid, SiLU).
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
func New() *Backend {
	return internalcpu.New()
}
