// Package dispatcher fans a stream of synced frames out to N sinks, each
// behind its own bounded queue and worker goroutine, so a slow or failing
// sink can never stall its peers or the core engine.
package dispatcher

import "github.com/clearpath-sim/syncframe/internal/syncengine"

// DataSink receives synchronized frames. Write errors are non-fatal at the
// dispatcher level: they are logged and counted, and the worker continues
// with the next frame. Flush and Close are each called exactly once, at
// shutdown.
type DataSink interface {
	Name() string
	Write(frame syncengine.SyncedFrame) error
	Flush() error
	Close() error
}
