// Package sinks provides reference DataSink implementations. Concrete
// wire-format sinks (file encoding, UDP framing) are out of scope; these
// are the sinks used by tests and by the default orchestration wiring.
package sinks

import (
	"github.com/sirupsen/logrus"

	"github.com/clearpath-sim/syncframe/internal/syncengine"
)

// LogSink writes a one-line summary of each synced frame to a logrus
// logger. It never fails: Write always returns nil.
type LogSink struct {
	name   string
	logger *logrus.Logger
}

// NewLogSink returns a LogSink labeled name, logging through logger.
func NewLogSink(name string, logger *logrus.Logger) *LogSink {
	return &LogSink{name: name, logger: logger}
}

func (s *LogSink) Name() string {
	return s.name
}

func (s *LogSink) Write(frame syncengine.SyncedFrame) error {
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"sink":            s.name,
			"frame_id":        frame.FrameID,
			"t_sync":          frame.TSync,
			"sensors":         len(frame.Frames),
			"missing_sensors": frame.SyncMeta.MissingSensors,
		}).Info("synced frame")
	}
	return nil
}

func (s *LogSink) Flush() error {
	return nil
}

func (s *LogSink) Close() error {
	return nil
}
