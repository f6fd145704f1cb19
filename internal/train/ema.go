package train

import (
	"fmt"

	"github.com/drift-ml/drift/internal/nn"
	"github.com/drift-ml/drift/internal/tensor"
)

// DefaultEMAWarmup is the number of tracker steps during which the
// shadow network mirrors the live one verbatim before blending begins.
const DefaultEMAWarmup = 2000

// Network is the weight surface shared by the live and shadow models:
// ordered parameters for blending plus state-dict access for verbatim
// copies.
type Network[B tensor.Backend] interface {
	Parameters() []*nn.Parameter[B]
	nn.StateModule
}

// EMA maintains an exponential moving average of a live network inside
// a structurally identical shadow network.
//
// For the first warmup steps the shadow is overwritten with the live
// weights, so early training noise never pollutes the average. From
// then on each step blends
//
//	shadow = beta*shadow + (1-beta)*live
//
// element-wise across parameters in declaration order. The shadow
// keeps its own buffers throughout; it never aliases live tensors.
type EMA[B tensor.Backend] struct {
	beta   float32
	warmup int
	step   int
}

// NewEMA creates a tracker with the given smoothing factor, 0.95 in
// the standard configuration. beta must lie strictly inside (0, 1).
func NewEMA[B tensor.Backend](beta float32, warmup int) *EMA[B] {
	if beta <= 0 || beta >= 1 {
		panic(fmt.Sprintf("ema: beta must be in (0, 1), got %g", beta))
	}
	if warmup < 0 {
		panic(fmt.Sprintf("ema: negative warmup %d", warmup))
	}
	return &EMA[B]{beta: beta, warmup: warmup}
}

// Step advances the tracker one update: a copy while warming up, a
// blend afterwards. The step counter increments either way.
func (e *EMA[B]) Step(shadow, live Network[B]) error {
	warm := e.step < e.warmup
	e.step++
	if warm {
		return shadow.LoadStateDict(live.StateDict())
	}
	return e.blend(shadow, live)
}

// blend folds the live weights into the shadow buffers in place.
func (e *EMA[B]) blend(shadow, live Network[B]) error {
	shadowParams := shadow.Parameters()
	liveParams := live.Parameters()
	if len(shadowParams) != len(liveParams) {
		return fmt.Errorf("ema: shadow has %d parameters, live has %d", len(shadowParams), len(liveParams))
	}

	for i, sp := range shadowParams {
		s := sp.Tensor().Raw().AsFloat32()
		l := liveParams[i].Tensor().Raw().AsFloat32()
		if len(s) != len(l) {
			return fmt.Errorf("ema: parameter %s has %d elements in the shadow but %d live", sp.Name(), len(s), len(l))
		}
		for j := range s {
			s[j] = e.beta*s[j] + (1-e.beta)*l[j]
		}
	}
	return nil
}

// Beta returns the smoothing factor.
func (e *EMA[B]) Beta() float32 {
	return e.beta
}

// StepCount returns the number of tracker steps taken so far.
func (e *EMA[B]) StepCount() int {
	return e.step
}
