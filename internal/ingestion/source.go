// Package ingestion defines the sensor source contract the core consumes
// and two reference adapters: a periodic mock generator (internal/ingestion/mock)
// and a serial-line adapter (internal/ingestion/serial).
package ingestion

import "github.com/clearpath-sim/syncframe/internal/sensor"

// Callback receives one packet at a time. Implementations must be cheap:
// a source may invoke it from any goroutine and expects it to return
// quickly (forwarding to a channel, not doing heavy work inline).
type Callback func(sensor.Packet)

// Source is the contract the core consumes from sensor adapters. Listen
// is idempotent: calling it again while already listening is a no-op.
type Source interface {
	ID() sensor.ID
	Kind() sensor.Kind
	Listen(cb Callback)
	Stop()
	IsListening() bool
}
