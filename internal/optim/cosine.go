package optim

import "math"

// Verify that CosineAnnealingLR implements Scheduler.
var _ Scheduler = (*CosineAnnealingLR)(nil)

// CosineAnnealingLR anneals the learning rate from the optimizer's
// initial value down to EtaMin over TMax epochs following a half
// cosine:
//
//	lr = eta_min + (base_lr - eta_min) * (1 + cos(pi * epoch / T_max)) / 2
//
// Step is called once per epoch. Past TMax epochs the schedule walks
// back up the cosine, matching the usual annealing-with-restarts
// behavior when training runs longer than TMax.
type CosineAnnealingLR struct {
	optimizer Optimizer
	baseLR    float64
	tMax      int
	etaMin    float64
	lastEpoch int
}

// NewCosineAnnealingLR creates a cosine schedule over the optimizer's
// current learning rate. tMax is the half-period in epochs; etaMin is
// the floor the rate decays to.
func NewCosineAnnealingLR(optimizer Optimizer, tMax int, etaMin float64) *CosineAnnealingLR {
	if tMax <= 0 {
		panic("cosine schedule requires tMax > 0")
	}
	return &CosineAnnealingLR{
		optimizer: optimizer,
		baseLR:    float64(optimizer.GetLR()),
		tMax:      tMax,
		etaMin:    etaMin,
		lastEpoch: 0,
	}
}

// Step advances the schedule by one epoch and updates the optimizer.
func (s *CosineAnnealingLR) Step() {
	s.lastEpoch++
	s.apply()
}

// GetLR returns the learning rate for the current epoch.
func (s *CosineAnnealingLR) GetLR() float32 {
	return float32(s.currentLR())
}

// LastEpoch returns how many times Step has been called.
func (s *CosineAnnealingLR) LastEpoch() int {
	return s.lastEpoch
}

func (s *CosineAnnealingLR) currentLR() float64 {
	phase := math.Pi * float64(s.lastEpoch) / float64(s.tMax)
	return s.etaMin + (s.baseLR-s.etaMin)*(1+math.Cos(phase))/2
}

func (s *CosineAnnealingLR) apply() {
	s.optimizer.SetLR(float32(s.currentLR()))
}

// StateDict exports the schedule state as a flat float dictionary.
func (s *CosineAnnealingLR) StateDict() map[string]float64 {
	return map[string]float64{
		"base_lr":    s.baseLR,
		"t_max":      float64(s.tMax),
		"eta_min":    s.etaMin,
		"last_epoch": float64(s.lastEpoch),
	}
}

// LoadStateDict restores the schedule and re-applies the learning rate
// to the optimizer.
func (s *CosineAnnealingLR) LoadStateDict(state map[string]float64) {
	if v, ok := state["base_lr"]; ok {
		s.baseLR = v
	}
	if v, ok := state["t_max"]; ok && int(v) > 0 {
		s.tMax = int(v)
	}
	if v, ok := state["eta_min"]; ok {
		s.etaMin = v
	}
	if v, ok := state["last_epoch"]; ok {
		s.lastEpoch = int(v)
	}
	s.apply()
}
