// Copyright 2026 Mixture ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides neural network layers and building blocks.
//
// # Overview
//
// This package contains:
//   - Layers: Linear, FFN, Embedding, SparseMoE
//   - Activations: ReLU, SiLU
//   - Sparse routing: token-choice and expert-choice routers with
//     load-balancing and z-loss auxiliaries
//   - Utilities: Module interface, Parameter, initialization helpers
//
// # Basic Usage
//
//	import (
//	    "github.com/mixture-ml/mixture/nn"
//	    "github.com/mixture-ml/mixture/backend/cpu"
//	)
//
//	backend := cpu.New()
//	rng := rand.New(rand.NewSource(1))
//	moe, err := nn.NewSparseMoE(backend, nn.RouterConfig{
//	    Type:               nn.TokensChooseExperts,
//	    HiddenDim:          512,
//	    NumExperts:         8,
//	    NumSelectedExperts: 1,
//	}, 2048, 64, rng)
package nn
