// Package kalman implements the adaptive two-state Kalman filter (AdaKF)
// used to estimate, per sensor, the clock offset and drift relative to the
// synchronization engine's reference clock.
package kalman

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	minDt        = 1e-3
	defaultAlpha = 0.85
)

// AdaKF tracks a sensor's time offset with state x = [offset, drift]^T,
// transition F = [[1, dt], [0, 1]], observation H = [1, 0]. Predict and
// update run as real gonum matrix algebra (Mul, Add, Sub, Outer) rather
// than hand-expanded scalar formulas, so the filter generalizes the same
// way a larger multi-state filter would.
type AdaKF struct {
	state      *mat.VecDense // [offset, drift]
	covariance *mat.Dense    // 2x2

	baseQOffset float64
	baseQDrift  float64
	baseR       float64
	r           float64

	ewmaVariance float64

	residualWindow []float64
	windowSize     int
	alpha          float64

	expectedInterval float64
	loadScaleDamping float64
}

// New constructs an AdaKF from cfg, applying the same floors as the
// reference implementation so a zero-valued field never produces a
// degenerate (zero or infinite noise) filter.
func New(cfg Config) *AdaKF {
	windowSize := cfg.ResidualWindow
	if windowSize < 3 {
		windowSize = 3
	}
	baseQOffset := math.Max(cfg.ProcessNoise, 1e-9)
	baseQDrift := math.Max(cfg.ProcessNoise*0.1, 1e-9)
	baseR := math.Max(cfg.MeasurementNoise, 1e-9)
	expectedInterval := cfg.ExpectedInterval
	if expectedInterval <= 0 {
		expectedInterval = 0.05
	}
	expectedInterval = math.Max(expectedInterval, minDt)
	damping := cfg.LoadScaleDamping
	if damping == 0 {
		damping = 1.0
	}

	return &AdaKF{
		state:            mat.NewVecDense(2, []float64{cfg.InitialOffset, 0.0}),
		covariance:       mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
		baseQOffset:      baseQOffset,
		baseQDrift:       baseQDrift,
		baseR:            baseR,
		r:                baseR,
		ewmaVariance:     baseR,
		residualWindow:   make([]float64, 0, windowSize),
		windowSize:       windowSize,
		alpha:            defaultAlpha,
		expectedInterval: expectedInterval,
		loadScaleDamping: damping,
	}
}

// Update folds in a new observation (t_sensor - t_reference) given the
// elapsed reference time dt since the previous update and a load_index in
// [0,1] derived from buffer pressure. It returns the updated offset
// estimate and the innovation (residual) used to produce it.
//
// A non-finite or non-positive dt falls back to the configured expected
// interval, so a single bad timestamp delta cannot destabilize the filter.
func (k *AdaKF) Update(observation, dt, loadIndex float64) (estimate, residual float64) {
	if !isFinitePositive(dt) {
		dt = k.expectedInterval
	}
	dt = math.Max(dt, minDt)

	F := mat.NewDense(2, 2, []float64{1, dt, 0, 1})

	var predicted mat.VecDense
	predicted.MulVec(F, k.state)

	clampedLoad := clamp(loadIndex, 0, 1)
	scale := 1.0 + clampedLoad*k.loadScaleDamping
	Q := mat.NewDense(2, 2, []float64{k.baseQOffset * scale, 0, 0, k.baseQDrift * scale})

	// Pred = F*P*F^T + Q
	var FP mat.Dense
	FP.Mul(F, k.covariance)
	var FPFt mat.Dense
	FPFt.Mul(&FP, F.T())
	var predictedCov mat.Dense
	predictedCov.Add(&FPFt, Q)

	H := mat.NewVecDense(2, []float64{1, 0})
	innovation := observation - predicted.AtVec(0)
	s := predictedCov.At(0, 0) + k.r

	// K = Pred*H^T / S
	var gainRaw mat.VecDense
	gainRaw.MulVec(&predictedCov, H)
	var gain mat.VecDense
	gain.ScaleVec(1/s, &gainRaw)

	var newState mat.VecDense
	newState.AddScaledVec(&predicted, innovation, &gain)

	// Pnew = (I - K*H) * Pred, applied as Pred - (K*H)*Pred
	var KH mat.Dense
	KH.Outer(1, &gain, H)
	var KHP mat.Dense
	KHP.Mul(&KH, &predictedCov)
	var newCov mat.Dense
	newCov.Sub(&predictedCov, &KHP)

	k.state.CopyVec(&newState)
	// H = [1, 0] keeps Pred (and thus Pnew) symmetric in exact arithmetic;
	// the (1,0) entry is mirrored from (0,1) rather than read back in case
	// of floating-point asymmetry from the matrix ops above.
	k.covariance.Set(0, 0, math.Max(newCov.At(0, 0), 0))
	k.covariance.Set(0, 1, newCov.At(0, 1))
	k.covariance.Set(1, 0, newCov.At(0, 1))
	k.covariance.Set(1, 1, math.Max(newCov.At(1, 1), 0))

	k.recordResidual(innovation)
	k.updateMeasurementNoise(innovation)

	return k.state.AtVec(0), innovation
}

// Offset returns the current offset estimate in seconds.
func (k *AdaKF) Offset() float64 {
	return k.state.AtVec(0)
}

// Drift returns the current drift estimate in seconds per second.
func (k *AdaKF) Drift() float64 {
	return k.state.AtVec(1)
}

// Uncertainty returns the offset component's variance.
func (k *AdaKF) Uncertainty() float64 {
	return k.covariance.At(0, 0)
}

// RecentResiduals returns a snapshot of the residual history, oldest first.
func (k *AdaKF) RecentResiduals() []float64 {
	out := make([]float64, len(k.residualWindow))
	copy(out, k.residualWindow)
	return out
}

// Reset restores the filter to the initial conditions implied by cfg. The
// sync engine calls this when Update produces a non-finite state, per the
// failure-recovery behavior: a diverging estimator is discarded rather
// than left to poison every subsequent frame.
func (k *AdaKF) Reset(cfg Config) {
	*k = *New(cfg)
}

// Diverged reports whether the filter's state or covariance has left the
// finite reals, e.g. via an ill-conditioned sequence of updates.
func (k *AdaKF) Diverged() bool {
	for _, v := range []float64{
		k.state.AtVec(0), k.state.AtVec(1),
		k.covariance.At(0, 0), k.covariance.At(0, 1), k.covariance.At(1, 1),
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

func (k *AdaKF) recordResidual(residual float64) {
	k.residualWindow = append(k.residualWindow, residual)
	if len(k.residualWindow) > k.windowSize {
		k.residualWindow = k.residualWindow[1:]
	}
}

func (k *AdaKF) updateMeasurementNoise(residual float64) {
	k.ewmaVariance = k.alpha*k.ewmaVariance + (1-k.alpha)*residual*residual
	rMin := k.baseR * 0.1
	rMax := k.baseR * 10.0
	k.r = clamp(k.ewmaVariance, rMin, rMax)
}

func isFinitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
