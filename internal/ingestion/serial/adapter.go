// Package serial provides a Source backed by a real serial link carrying
// line-delimited JSON sensor telemetry, generalizing the line-framed
// serial plumbing a flight-controller link would use to arbitrary sensor
// ingestion.
package serial

import (
	"bufio"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/clearpath-sim/syncframe/internal/ingestion"
	"github.com/clearpath-sim/syncframe/internal/sensor"
)

// Config describes the serial link to open.
type Config struct {
	Port     string
	BaudRate int

	SensorID sensor.ID
	Kind     sensor.Kind
}

// DefaultConfig returns 115200 8N1, the same framing a flight-controller
// link uses.
func DefaultConfig() Config {
	return Config{BaudRate: 115200}
}

// wireLine is the JSON schema one line of the link carries: a timestamp
// and a kind-specific inline payload. Only the fields relevant to
// Config.Kind are populated by the sender.
type wireLine struct {
	Timestamp     float64  `json:"timestamp"`
	FrameID       *uint64  `json:"frame_id,omitempty"`
	Accelerometer *vector3 `json:"accelerometer,omitempty"`
	Gyroscope     *vector3 `json:"gyroscope,omitempty"`
	Compass       *float64 `json:"compass,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	Altitude      *float64 `json:"altitude,omitempty"`
	Raw           []byte   `json:"raw,omitempty"`
}

type vector3 struct {
	X, Y, Z float64
}

// Source reads newline-delimited JSON telemetry from a serial port and
// forwards each line, decoded into a sensor.Packet, to the registered
// callback.
type Source struct {
	cfg    Config
	logger *logrus.Logger

	running int32

	mu   sync.Mutex
	port serial.Port
	done chan struct{}
}

// New constructs a Source for cfg. logger may be nil.
func New(cfg Config, logger *logrus.Logger) *Source {
	return &Source{cfg: cfg, logger: logger}
}

func (s *Source) ID() sensor.ID     { return s.cfg.SensorID }
func (s *Source) Kind() sensor.Kind { return s.cfg.Kind }

func (s *Source) IsListening() bool {
	return atomic.LoadInt32(&s.running) == 1
}

// Listen opens the serial port and starts a reader goroutine. A second
// call while already listening is a no-op; if the port fails to open, the
// error is logged and Listen returns without starting the reader.
func (s *Source) Listen(cb ingestion.Callback) {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return
	}

	mode := &serial.Mode{
		BaudRate: s.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(s.cfg.Port, mode)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		if s.logger != nil {
			s.logger.WithError(fmt.Errorf("open serial port %s: %w", s.cfg.Port, err)).
				WithField("sensor_id", string(s.cfg.SensorID)).Error("serial source failed to start")
		}
		return
	}

	s.mu.Lock()
	s.port = port
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(cb)
}

// Stop closes the serial port, ending the reader goroutine, and waits for
// it to exit.
func (s *Source) Stop() {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return
	}

	s.mu.Lock()
	port := s.port
	done := s.done
	s.mu.Unlock()

	if port != nil {
		port.Close()
	}
	if done != nil {
		<-done
	}
}

func (s *Source) run(cb ingestion.Callback) {
	s.mu.Lock()
	port := s.port
	done := s.done
	s.mu.Unlock()
	defer close(done)

	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		var line wireLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			if s.logger != nil {
				s.logger.WithError(err).WithField("sensor_id", string(s.cfg.SensorID)).
					Warn("discarding malformed serial telemetry line")
			}
			continue
		}
		cb(s.toPacket(line))
	}
}

func (s *Source) toPacket(line wireLine) sensor.Packet {
	return sensor.Packet{
		ID:        s.cfg.SensorID,
		Kind:      s.cfg.Kind,
		Timestamp: line.Timestamp,
		FrameID:   line.FrameID,
		Payload:   s.toPayload(line),
	}
}

func (s *Source) toPayload(line wireLine) sensor.Payload {
	switch s.cfg.Kind {
	case sensor.IMU:
		p := sensor.IMUPayload{}
		if line.Accelerometer != nil {
			p.Accelerometer = sensor.Vector3{X: line.Accelerometer.X, Y: line.Accelerometer.Y, Z: line.Accelerometer.Z}
		}
		if line.Gyroscope != nil {
			p.Gyroscope = sensor.Vector3{X: line.Gyroscope.X, Y: line.Gyroscope.Y, Z: line.Gyroscope.Z}
		}
		if line.Compass != nil {
			p.Compass = *line.Compass
		}
		return p
	case sensor.GNSS:
		p := sensor.GNSSPayload{}
		if line.Latitude != nil {
			p.Latitude = *line.Latitude
		}
		if line.Longitude != nil {
			p.Longitude = *line.Longitude
		}
		if line.Altitude != nil {
			p.Altitude = *line.Altitude
		}
		return p
	default:
		return sensor.RawPayload{Data: line.Raw}
	}
}
