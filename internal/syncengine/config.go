package syncengine

import (
	"fmt"

	"github.com/clearpath-sim/syncframe/internal/kalman"
	"github.com/clearpath-sim/syncframe/internal/sensor"
	"github.com/clearpath-sim/syncframe/internal/window"
)

// MissingDataStrategy controls what happens when a sync attempt cannot
// find every required sensor within the window.
type MissingDataStrategy int

const (
	// Drop refuses to emit at all while any required sensor is missing.
	Drop MissingDataStrategy = iota
	// Empty emits with only the sensors that passed, listing the rest as
	// missing in SyncMeta.
	Empty
	// Interpolate is accepted as configuration but handled identically to
	// Empty: synthesizing a sample is payload-type-specific and is left
	// as a documented extension point, not silently fabricated here.
	Interpolate
)

// BufferConfig bounds a single sensor's packet buffer. Every engine buffer
// uses buffer.DropOldest. TimeoutS is carried in the config but the engine
// runs no expiry sweep, so packets are never evicted by age.
type BufferConfig struct {
	MaxSize  int
	TimeoutS float64
}

// DefaultBufferConfig returns max_size=1000, timeout_s=1.0.
func DefaultBufferConfig() BufferConfig {
	return BufferConfig{MaxSize: 1000, TimeoutS: 1.0}
}

// Config is the complete configuration for a SyncEngine.
type Config struct {
	ReferenceSensorID sensor.ID
	RequiredSensors   []sensor.ID
	// IMUSensorID is optional; when empty, motion intensity stays 0.
	IMUSensorID sensor.ID

	Window window.Config
	Buffer BufferConfig
	AdaKF  kalman.Config

	MissingStrategy MissingDataStrategy

	// SensorIntervals overrides the expected sampling interval (seconds)
	// per sensor; sensors not listed fall back to DefaultSensorInterval.
	SensorIntervals map[sensor.ID]float64
}

// DefaultSensorInterval is used for any sensor without an explicit
// SensorIntervals entry.
const DefaultSensorInterval = 0.05

// Defaults returns a Config with every sub-config at its documented
// default. ReferenceSensorID and RequiredSensors are left empty; callers
// must set them before calling New.
func Defaults() Config {
	return Config{
		Window:          window.Defaults(),
		Buffer:          DefaultBufferConfig(),
		AdaKF:           kalman.Defaults(),
		MissingStrategy: Drop,
		SensorIntervals: map[sensor.ID]float64{},
	}
}

// Validate checks the construction-time invariants that are fatal to the
// engine caller. The reference sensor is implicitly required even if the
// caller did not list it in RequiredSensors; see requiredSensors().
func (c Config) Validate() error {
	if c.ReferenceSensorID == "" {
		return fmt.Errorf("syncengine: reference_sensor_id is required")
	}
	if len(c.RequiredSensors) == 0 {
		return fmt.Errorf("syncengine: required_sensors must be non-empty")
	}
	return nil
}

// expectedInterval returns the configured interval for id when it is
// positive, or DefaultSensorInterval otherwise. No 1ms floor is applied
// here; the estimator applies its own.
func (c Config) expectedInterval(id sensor.ID) float64 {
	if v, ok := c.SensorIntervals[id]; ok && v > 0 {
		return v
	}
	return DefaultSensorInterval
}
