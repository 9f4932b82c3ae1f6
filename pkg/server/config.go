package server

import "time"

// Config is the server's init-time configuration. Once NewServer(cfg) has
// run, a Config value is never mutated again — every mutable piece of
// server state lives behind the Server's own lock instead.
type Config struct {
	// ListenAddr is the binary-protocol listen address, e.g. "0.0.0.0:4730".
	ListenAddr string
	// WebAddress is the HTTP monitoring API listen address. Empty disables it.
	WebAddress string
	// Storage is the directory holding the LevelDB background-job snapshot.
	// Empty disables persistence.
	Storage string

	// ThreadCount is the number of I/O threads. 1 means single-threaded:
	// commands run inline on the connection goroutine that read them. A
	// value greater than 1 starts a dedicated dispatcher goroutine that
	// all I/O threads hand packets to.
	ThreadCount int
	// Backlog is the buffered depth of the channels that carry packets
	// and dead-connection notices to the dispatcher goroutine (used only
	// when ThreadCount > 1).
	Backlog int
	// WakeupCount bounds how many sleeping workers are woken per newly
	// queued job on a single function (spec §4.3 NOOP coalescing still
	// applies per-worker).
	WakeupCount int

	// LogVerbosity is the Logger's verbosity gate checked by Logger.V
	// (0 = quiet).
	LogVerbosity int
	// GracefulSignal names the OS signal that triggers a graceful
	// shutdown request (e.g. "SIGTERM"); the server's reaper (reaper.go)
	// listens for it.
	GracefulSignal string

	// SweepInterval is how often the worker-timeout sweep runs. Zero
	// disables the sweep.
	SweepInterval time.Duration
	// ProtocolTimeout bounds how long a binary-protocol connection may
	// take to deliver its next complete frame, idle time included, before
	// it is considered dead. Admin-protocol connections are not subject
	// to it. Zero disables it.
	ProtocolTimeout time.Duration
}

// DefaultConfig returns the configuration gearhulk ships with out of the
// box, matching the flags cmd/server.go already exposes.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      ":4730",
		WebAddress:      ":3000",
		ThreadCount:     4,
		Backlog:         128,
		WakeupCount:     1,
		LogVerbosity:    0,
		GracefulSignal:  "SIGTERM",
		SweepInterval:   30 * time.Second,
		ProtocolTimeout: 0,
	}
}
