package kalman

// Config parameterizes a single AdaKF instance. New floors or defaults
// zero-valued fields as documented on each field; Defaults() returns the
// baseline configuration to start from.
type Config struct {
	// InitialOffset seeds the offset state (seconds).
	InitialOffset float64
	// ProcessNoise is the base process noise for the offset state; the
	// drift state uses ProcessNoise*0.1. Floored at 1e-9.
	ProcessNoise float64
	// MeasurementNoise is the baseline observation noise R. Floored at 1e-9.
	MeasurementNoise float64
	// ResidualWindow bounds how many residuals are kept for diagnostics.
	// Floored at 3.
	ResidualWindow int
	// ExpectedInterval is the nominal sampling period in seconds, used
	// whenever a caller passes a non-finite or non-positive dt. Zero or
	// negative means "unset": New falls back to 0.05.
	ExpectedInterval float64
	// LoadScaleDamping scales how strongly buffer-pressure load_index
	// inflates process noise. 1.0 reproduces the reference behavior
	// exactly (scale = 1 + clamp(load_index,0,1)); values below 1.0
	// dampen the feedback loop between queue pressure and filter
	// responsiveness.
	LoadScaleDamping float64
}

// Defaults returns the baseline configuration matching the reference
// estimator: zero initial offset, process noise 1e-4, measurement noise
// 1e-3, a 20-sample residual window, 50ms expected interval.
func Defaults() Config {
	return Config{
		InitialOffset:    0.0,
		ProcessNoise:     1e-4,
		MeasurementNoise: 1e-3,
		ResidualWindow:   20,
		ExpectedInterval: 0.05,
		LoadScaleDamping: 1.0,
	}
}
