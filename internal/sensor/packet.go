package sensor

// Packet is a single reading as received from ingestion, before
// synchronization. Timestamp is the simulation clock in seconds and is the
// engine's master ordering key; FrameID is an optional sequence number used
// only for diagnostics.
type Packet struct {
	ID        ID
	Kind      Kind
	Timestamp float64
	FrameID   *uint64
	Payload   Payload
}
