package syncengine

import (
	"math"

	"github.com/clearpath-sim/syncframe/internal/sensor"
)

const (
	minWindowFloorS  = 0.005
	acceptRateEWMA   = 0.98
	acceptRateTarget = 0.02 // 1 - acceptRateEWMA, kept explicit for readability
	lowAcceptRate    = 0.90
	highAcceptRate   = 0.97
	multiplierDown   = 0.995
	multiplierUp     = 1.002
	multiplierMin    = 0.1
	multiplierMax    = 2.0
)

// qualityControl holds the slow adaptive-threshold control loop: an EWMA
// of the per-attempt acceptance rate drives a single multiplier applied to
// every sensor kind's base quality threshold, targeting a sustained ~95%
// acceptance rate.
type qualityControl struct {
	acceptRate float64
	multiplier float64
}

func newQualityControl() *qualityControl {
	return &qualityControl{acceptRate: 1.0, multiplier: 1.0}
}

// qualityScore computes the quality score for one candidate packet selection.
func qualityScore(timeDelta, window, residual, minWindowS, loadIndex float64, kind sensor.Kind) float64 {
	sigmaT := math.Max(window/2, 1e-3)
	sigmaR := math.Max(minWindowS, 1e-3)

	timeTerm := math.Exp(-math.Pow(absF64(timeDelta)/sigmaT, 2))
	residualTerm := math.Exp(-math.Pow(absF64(residual)/sigmaR, 2))
	loadTerm := 1 - 0.5*clamp(loadIndex, 0, 1)

	q := timeTerm * residualTerm * loadTerm * kind.Bias()
	return clamp(q, 0, 1)
}

// threshold returns the effective quality gate for kind: its base floor
// scaled by the current adaptive multiplier.
func (qc *qualityControl) threshold(kind sensor.Kind) float64 {
	return kind.QualityThreshold() * qc.multiplier
}

// adapt folds in one sync attempt's acceptance ratio (accepted out of
// required) and nudges the multiplier toward a ~95% long-run acceptance
// rate. Tune the smoothing constant and the -0.5%/+0.2% step sizes
// before touching the floor/ceiling clamps.
func (qc *qualityControl) adapt(accepted, required int) {
	if required <= 0 {
		return
	}
	r := float64(accepted) / float64(required)
	qc.acceptRate = acceptRateEWMA*qc.acceptRate + (1-acceptRateEWMA)*r

	switch {
	case qc.acceptRate < lowAcceptRate:
		qc.multiplier *= multiplierDown
	case qc.acceptRate > highAcceptRate:
		qc.multiplier *= multiplierUp
	}
	qc.multiplier = clamp(qc.multiplier, multiplierMin, multiplierMax)
}

func absF64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
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
