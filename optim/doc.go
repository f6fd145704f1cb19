// Copyright 2025 Drift ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimization algorithms for training neural networks.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation with bias correction
//   - CosineAnnealingLR: cosine learning rate schedule
//   - Optimizer and Scheduler interfaces for custom implementations
//
// # Basic Usage
//
//	import (
//	    "github.com/drift-ml/drift/optim"
//	    "github.com/drift-ml/drift/nn"
//	    "github.com/drift-ml/drift/backend/cpu"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    model := nn.NewLinear(256, 64, backend)
//
//	    // Create optimizer
//	    optimizer := optim.NewAdam(
//	        model.Parameters(),
//	        optim.AdamConfig{
//	            LR:    0.001,
//	            Betas: [2]float32{0.9, 0.999},
//	        },
//	        backend,
//	    )
//
//	    // Training loop
//	    for epoch := range 10 {
//	        // Forward pass
//	        loss := criterion.Forward(model.Forward(x), y)
//
//	        // Backward pass, fold gradients onto parameters
//	        grads := autodiff.Backward(loss, backend)
//	        for _, p := range model.Parameters() {
//	            if g, ok := grads[p.Tensor().Raw()]; ok {
//	                p.AccumulateGrad(tensor.New[float32](g, backend))
//	            }
//	        }
//
//	        // Update parameters, then clear gradients
//	        optimizer.Step()
//	        optimizer.ZeroGrad()
//	    }
//	}
//
// # Optimizers
//
// SGD (Stochastic Gradient Descent):
//
//	optimizer := optim.NewSGD(
//	    model.Parameters(),
//	    optim.SGDConfig{
//	        LR:       0.01,
//	        Momentum: 0.9,
//	    },
//	    backend,
//	)
//
// Adam (Adaptive Moment Estimation):
//
//	optimizer := optim.NewAdam(
//	    model.Parameters(),
//	    optim.AdamConfig{
//	        LR:    0.001,
//	        Betas: [2]float32{0.9, 0.999},
//	        Eps:   1e-8,
//	    },
//	    backend,
//	)
//
// # Gradient Accumulation
//
// Optimizers read gradients from the parameters themselves
// (Parameter.Grad), so several micro-batches can accumulate onto the
// same buffers before one Step. This is how large effective batch
// sizes are trained on small-memory machines:
//
//	for i, batch := range microBatches {
//	    loss := criterion.Forward(model.Forward(batch.Input), batch.Target)
//	    foldGrads(autodiff.Backward(loss, backend)) // AccumulateGrad adds onto existing buffers
//	    if (i+1)%accumIters == 0 {
//	        optimizer.Step()
//	        optimizer.ZeroGrad()
//	    }
//	}
//
// # Learning Rate Schedules
//
// CosineAnnealingLR decays the rate from its initial value to etaMin
// over tMax epochs:
//
//	scheduler := optim.NewCosineAnnealingLR(optimizer, 300, 0)
//
//	for epoch := range numEpochs {
//	    // ... train one epoch ...
//	    scheduler.Step()
//	}
package optim
