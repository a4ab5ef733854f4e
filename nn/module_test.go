// Copyright 2026 Mixture ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"math/rand"
	"testing"

	"github.com/mixture-ml/mixture/backend/cpu"
	"github.com/mixture-ml/mixture/nn"
	"github.com/mixture-ml/mixture/tensor"
)

// TestModuleInterface verifies that concrete layer types implement the
// Module interface through the public API.
func TestModuleInterface(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))

	linear, err := nn.NewLinear(backend, 10, 5, rng)
	if err != nil {
		t.Fatalf("NewLinear: %v", err)
	}
	ffn, err := nn.NewFFN(backend, 10, 20, nn.NewSiLU[*cpu.Backend](), rng)
	if err != nil {
		t.Fatalf("NewFFN: %v", err)
	}

	tests := []struct {
		name   string
		module nn.Module[*cpu.Backend]
	}{
		{name: "Linear", module: linear},
		{name: "FFN", module: ffn},
		{name: "ReLU", module: nn.NewReLU[*cpu.Backend]()},
		{name: "SiLU", module: nn.NewSiLU[*cpu.Backend]()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tensor.Randn[float32](tensor.Shape{2, 10}, backend)
			out := tt.module.Forward(input)
			if out == nil {
				t.Fatal("Forward() returned nil")
			}
			_ = tt.module.Parameters()
		})
	}
}

// TestPublicRoutingAPI routes a batch end to end through the facade.
func TestPublicRoutingAPI(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(2))

	moe, err := nn.NewSparseMoE(backend, nn.RouterConfig{
		Type:               nn.TokensChooseExperts,
		HiddenDim:          8,
		NumExperts:         4,
		NumSelectedExperts: 2,
	}, 16, 4, rng)
	if err != nil {
		t.Fatalf("NewSparseMoE: %v", err)
	}

	input := tensor.Randn[float32](tensor.Shape{2, 6, 8}, backend)
	output, routing := moe.ForwardRouted(input, nn.RouteOptions{})

	if !output.Shape().Equal(tensor.Shape{2, 6, 8}) {
		t.Errorf("output shape = %v, want [2 6 8]", output.Shape())
	}
	if !routing.DispatchMask.Shape().Equal(tensor.Shape{2, 6, 4, 4}) {
		t.Errorf("dispatch shape = %v, want [2 6 4 4]", routing.DispatchMask.Shape())
	}
	if routing.RouterZLoss <= 0 {
		t.Errorf("z-loss = %v, want > 0", routing.RouterZLoss)
	}
}
