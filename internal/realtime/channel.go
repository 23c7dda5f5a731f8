package realtime

// Channel is one live push connection to a single user. Implementations wrap
// the concrete transport (the HTTP layer serves an SSE stream); Send must be
// safe to call after Close and report failure instead of panicking.
type Channel interface {
	Send(data []byte) error

	Close() error

	Alive() bool
}
