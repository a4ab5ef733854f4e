// Copyright 2026 Mixture ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/mixture-ml/mixture/internal/tensor"
)

// RawTensor is the low-level tensor representation.
//
// RawTensor provides:
//   - Shape and type information via Shape(), DType(), Device()
//   - Type-safe data access via AsFloat32(), AsInt32(), etc.
//   - Copy-on-write semantics via Clone()
//   - Reference counting for efficient memory management
//
// Most users should use the high-level Tensor[T, B] type instead.
type RawTensor = tensor.RawTensor
