// Package mock provides a periodic synthetic sensor source for tests and
// for running the pipeline without a simulator attached.
package mock

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/clearpath-sim/syncframe/internal/ingestion"
	"github.com/clearpath-sim/syncframe/internal/sensor"
)

// Config parameterizes a generated stream for one sensor.
type Config struct {
	ID          sensor.ID
	Kind        sensor.Kind
	FrequencyHz float64

	// ImageWidth/ImageHeight size a generated ImagePayload (Camera only).
	ImageWidth  uint32
	ImageHeight uint32
	// LidarPoints sizes a generated PointCloudPayload (LiDAR only).
	LidarPoints uint32
}

// DefaultConfig returns a 10Hz camera generator, the same defaults the
// reference generator uses.
func DefaultConfig() Config {
	return Config{
		ID:          "mock_sensor",
		Kind:        sensor.Camera,
		FrequencyHz: 10.0,
		ImageWidth:  800,
		ImageHeight: 600,
		LidarPoints: 10000,
	}
}

// Source generates packets for one sensor at a fixed frequency on its own
// goroutine until Stop is called.
type Source struct {
	cfg     Config
	running int32

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

// New constructs a generator from cfg.
func New(cfg Config) *Source {
	return &Source{cfg: cfg}
}

// Camera returns a generator producing BGRA8 frames at width x height.
func Camera(id sensor.ID, frequencyHz float64, width, height uint32) *Source {
	cfg := DefaultConfig()
	cfg.ID, cfg.Kind, cfg.FrequencyHz = id, sensor.Camera, frequencyHz
	cfg.ImageWidth, cfg.ImageHeight = width, height
	return New(cfg)
}

// LiDAR returns a generator producing point clouds of numPoints points.
func LiDAR(id sensor.ID, frequencyHz float64, numPoints uint32) *Source {
	cfg := DefaultConfig()
	cfg.ID, cfg.Kind, cfg.FrequencyHz, cfg.LidarPoints = id, sensor.LiDAR, frequencyHz, numPoints
	return New(cfg)
}

// IMU returns a generator producing a stationary-upright IMU reading.
func IMU(id sensor.ID, frequencyHz float64) *Source {
	cfg := DefaultConfig()
	cfg.ID, cfg.Kind, cfg.FrequencyHz = id, sensor.IMU, frequencyHz
	return New(cfg)
}

// GNSS returns a generator producing a slowly-drifting geodetic fix.
func GNSS(id sensor.ID, frequencyHz float64) *Source {
	cfg := DefaultConfig()
	cfg.ID, cfg.Kind, cfg.FrequencyHz = id, sensor.GNSS, frequencyHz
	return New(cfg)
}

func (s *Source) ID() sensor.ID     { return s.cfg.ID }
func (s *Source) Kind() sensor.Kind { return s.cfg.Kind }

func (s *Source) IsListening() bool {
	return atomic.LoadInt32(&s.running) == 1
}

// Listen starts the generator goroutine. A second call while already
// running is a no-op.
func (s *Source) Listen(cb ingestion.Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return
	}

	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(cb, s.stop)
}

// Stop signals the generator goroutine to exit and waits for it.
func (s *Source) Stop() {
	s.mu.Lock()
	stopCh := s.stop
	s.mu.Unlock()

	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return
	}
	if stopCh != nil {
		close(stopCh)
	}
	s.wg.Wait()
}

func (s *Source) run(cb ingestion.Callback, stop <-chan struct{}) {
	defer s.wg.Done()

	interval := time.Duration(float64(time.Second) / s.cfg.FrequencyHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	var frameID uint64

	for {
		select {
		case <-stop:
			return
		case tick := <-ticker.C:
			frameID++
			id := frameID
			packet := sensor.Packet{
				ID:        s.cfg.ID,
				Kind:      s.cfg.Kind,
				Timestamp: tick.Sub(start).Seconds(),
				FrameID:   &id,
				Payload:   s.payload(frameID),
			}
			cb(packet)
		}
	}
}

func (s *Source) payload(frameID uint64) sensor.Payload {
	switch s.cfg.Kind {
	case sensor.Camera:
		size := int(s.cfg.ImageWidth) * int(s.cfg.ImageHeight) * 4
		return sensor.ImagePayload{
			Width:  s.cfg.ImageWidth,
			Height: s.cfg.ImageHeight,
			Format: sensor.BGRA8,
			Data:   make([]byte, size),
		}
	case sensor.LiDAR:
		size := int(s.cfg.LidarPoints) * 16
		return sensor.PointCloudPayload{
			NumPoints:   s.cfg.LidarPoints,
			PointStride: 16,
			Data:        make([]byte, size),
		}
	case sensor.IMU:
		return sensor.IMUPayload{
			Accelerometer: sensor.Vector3{X: 0, Y: 0, Z: 9.81},
		}
	case sensor.GNSS:
		return sensor.GNSSPayload{
			Latitude:  40.0 + float64(frameID)*0.0001,
			Longitude: -74.0 + float64(frameID)*0.0001,
			Altitude:  100.0,
		}
	case sensor.Radar:
		return sensor.RadarPayload{
			NumDetections: 5,
			Data:          make([]byte, 5*16),
		}
	default:
		return sensor.RawPayload{}
	}
}
