package train

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drift-ml/drift/internal/backend/cpu"
	"github.com/drift-ml/drift/internal/nn"
)

type CPUBackend = *cpu.CPUBackend

// fillParams overwrites every parameter element of a network.
func fillParams(net Network[CPUBackend], value float32) {
	for _, p := range net.Parameters() {
		data := p.Tensor().Raw().AsFloat32()
		for i := range data {
			data[i] = value
		}
	}
}

func TestEMAWarmStartCopies(t *testing.T) {
	backend := cpu.New()
	live := nn.NewLinear(4, 3, backend)
	shadow := nn.NewLinear(4, 3, backend)
	ema := NewEMA[CPUBackend](0.95, 2)

	require.NoError(t, ema.Step(shadow, live))
	assert.Equal(t, 1, ema.StepCount())

	liveParams := live.Parameters()
	for i, sp := range shadow.Parameters() {
		assert.Equal(t, liveParams[i].Tensor().Raw().AsFloat32(), sp.Tensor().Raw().AsFloat32())
	}

	// The copy owns its buffers: mutating the live weights afterwards
	// must not leak into the shadow.
	before := shadow.Weight().Tensor().Raw().AsFloat32()[0]
	live.Weight().Tensor().Raw().AsFloat32()[0] += 5
	assert.Equal(t, before, shadow.Weight().Tensor().Raw().AsFloat32()[0])
}

func TestEMATracksLiveDuringWarmup(t *testing.T) {
	backend := cpu.New()
	live := nn.NewLinear(2, 2, backend)
	shadow := nn.NewLinear(2, 2, backend)
	ema := NewEMA[CPUBackend](0.5, 3)

	for step := 0; step < 3; step++ {
		fillParams(live, float32(step))
		require.NoError(t, ema.Step(shadow, live))
		assert.Equal(t, float32(step), shadow.Weight().Tensor().Raw().AsFloat32()[0])
	}
	assert.Equal(t, 3, ema.StepCount())
}

func TestEMABlend(t *testing.T) {
	backend := cpu.New()
	live := nn.NewLinear(3, 2, backend)
	shadow := nn.NewLinear(3, 2, backend)
	ema := NewEMA[CPUBackend](0.9, 0)

	fillParams(shadow, 2.0)
	fillParams(live, 1.0)

	require.NoError(t, ema.Step(shadow, live))
	for _, p := range shadow.Parameters() {
		for _, v := range p.Tensor().Raw().AsFloat32() {
			assert.InDelta(t, 0.9*2.0+0.1*1.0, v, 1e-6)
		}
	}

	// Second blend compounds on the shadow, not the original weights.
	require.NoError(t, ema.Step(shadow, live))
	for _, v := range shadow.Weight().Tensor().Raw().AsFloat32() {
		assert.InDelta(t, 0.9*1.9+0.1*1.0, v, 1e-6)
	}
	assert.Equal(t, 2, ema.StepCount())

	// Blending never writes the live side.
	for _, v := range live.Weight().Tensor().Raw().AsFloat32() {
		assert.Equal(t, float32(1.0), v)
	}
}

func TestEMABlendAfterWarmup(t *testing.T) {
	backend := cpu.New()
	live := nn.NewLinear(2, 2, backend)
	shadow := nn.NewLinear(2, 2, backend)
	ema := NewEMA[CPUBackend](0.95, 1)

	fillParams(live, 4.0)
	require.NoError(t, ema.Step(shadow, live)) // copy
	fillParams(live, 8.0)
	require.NoError(t, ema.Step(shadow, live)) // blend

	for _, v := range shadow.Weight().Tensor().Raw().AsFloat32() {
		assert.InDelta(t, 0.95*4.0+0.05*8.0, v, 1e-5)
	}
}

func TestEMAMismatchedNetworks(t *testing.T) {
	backend := cpu.New()
	live := nn.NewLinear(4, 3, backend)
	shadow := nn.NewLinear(2, 2, backend)
	ema := NewEMA[CPUBackend](0.95, 0)

	assert.Error(t, ema.Step(shadow, live))
	assert.Equal(t, 1, ema.StepCount(), "counter advances even on failure")
}

func TestEMAValidation(t *testing.T) {
	assert.Panics(t, func() { NewEMA[CPUBackend](0, 10) })
	assert.Panics(t, func() { NewEMA[CPUBackend](1, 10) })
	assert.Panics(t, func() { NewEMA[CPUBackend](0.95, -1) })
	assert.Equal(t, float32(0.95), NewEMA[CPUBackend](0.95, 10).Beta())
}
