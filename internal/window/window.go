// Package window computes the adaptive synchronization window used by the
// sync engine: tighter when the vehicle's IMU reports aggressive motion,
// looser when stationary, further nudged by how full the sensor buffers
// are.
package window

import (
	"gonum.org/v1/gonum/floats"

	"github.com/clearpath-sim/syncframe/internal/sensor"
)

// ComputeMotionIntensity derives a 0-1 motion score from an IMU reading:
// linear acceleration magnitude with gravity removed, blended with angular
// velocity magnitude.
func ComputeMotionIntensity(imu sensor.IMUPayload) float64 {
	linearMag := floats.Norm([]float64{
		imu.Accelerometer.X, imu.Accelerometer.Y, imu.Accelerometer.Z,
	}, 2)
	angularMag := floats.Norm([]float64{
		imu.Gyroscope.X, imu.Gyroscope.Y, imu.Gyroscope.Z,
	}, 2)

	// Gravity is ~9.8 m/s^2; remaining acceleration normalizes to 5 m/s^2
	// max. Typical driving angular velocity is ~0.5 rad/s, normalized to
	// 1.0 rad/s max.
	linearNormalized := clamp(absF64(linearMag-9.8)/5.0, 0, 1)
	angularNormalized := clamp(angularMag/1.0, 0, 1)

	return clamp((linearNormalized+angularNormalized)/2.0, 0, 1)
}

// FuseMotionPressure blends IMU-derived motion intensity with buffer
// pressure (0-1, how full the queues are) into a single control signal,
// weighted 70/30 toward motion.
func FuseMotionPressure(imuIntensity, bufferPressure float64) float64 {
	imu := clamp(imuIntensity, 0, 1)
	pressure := clamp(bufferPressure, 0, 1)
	return clamp(imu*0.7+pressure*0.3, 0, 1)
}

// ComputeWindowSize linearly interpolates between cfg.MaxMs (intensity 0,
// stationary) and cfg.MinMs (intensity 1, high motion), returning seconds.
func ComputeWindowSize(intensity float64, cfg Config) float64 {
	rng := cfg.MaxMs - cfg.MinMs
	windowMs := cfg.MaxMs - intensity*rng
	return windowMs / 1000.0
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

func absF64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
