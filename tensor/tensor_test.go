// Copyright 2026 Mixture ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/mixture-ml/mixture/backend/cpu"
	"github.com/mixture-ml/mixture/tensor"
)

// TestPublicAPI exercises the facade: creation, arithmetic, reductions.
func TestPublicAPI(t *testing.T) {
	backend := cpu.New()

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}

	y := tensor.Ones[float32](tensor.Shape{2, 2}, backend)
	sum := x.Add(y)

	want := []float32{2, 3, 4, 5}
	for i, v := range sum.Data() {
		if v != want[i] {
			t.Errorf("sum[%d] = %v, want %v", i, v, want[i])
		}
	}

	if got := x.Sum().Item(); got != 10 {
		t.Errorf("Sum() = %v, want 10", got)
	}

	sm := x.Softmax(1)
	for row := 0; row < 2; row++ {
		var total float32
		for col := 0; col < 2; col++ {
			total += sm.At(row, col)
		}
		if diff := total - 1; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("softmax row %d sums to %v", row, total)
		}
	}
}

func TestBackendMetadata(t *testing.T) {
	backend := cpu.New()
	if backend.Name() != "CPU" {
		t.Errorf("Name() = %q, want CPU", backend.Name())
	}
	if backend.Device() != tensor.CPU {
		t.Errorf("Device() = %v, want CPU", backend.Device())
	}
}
