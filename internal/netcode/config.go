package netcode

import (
	"time"

	"netreliant/internal/fragment"
)

// Config holds everything a Connection needs beyond the channels and
// security service supplied at construction. Like the teacher's
// NewServer(host, port, maxPlayers) constructor, this module has no
// env/CLI/flag layer: callers build a Config literal or start from
// DefaultConfig and override fields.
type Config struct {
	MaxPacketSize             int
	SentPacketsBufferSize     uint16
	ReceivedPacketsBufferSize uint16
	MeasureSmoothingFactor    float64
	TimeoutDuration           time.Duration
	HeartbeatTime             time.Duration
	Fragment                  fragment.Config
}

// DefaultConfig mirrors the values the renet implementation this module is
// modeled on ships by default.
func DefaultConfig() Config {
	return Config{
		MaxPacketSize:             16 * 1024,
		SentPacketsBufferSize:     256,
		ReceivedPacketsBufferSize: 256,
		MeasureSmoothingFactor:    0.05,
		TimeoutDuration:           5 * time.Second,
		HeartbeatTime:             100 * time.Millisecond,
		Fragment:                  fragment.DefaultConfig(),
	}
}
