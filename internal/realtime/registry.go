package realtime

import (
	"errors"
	"log"
	"sync"
)

var ErrNotConnected = errors.New("user has no live connection")

// Registry maps a user identity to at most one live channel. It is
// constructed once per process and injected wherever presence or delivery is
// needed; all mutations happen under one mutex, which is enough at the
// expected connection counts.
type Registry struct {
	mu       sync.Mutex
	channels map[string]Channel

	// onPresence is invoked outside the lock after a user goes online or
	// offline. Wired by the notifier after construction.
	onPresence func(userID string, online bool)
}

func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]Channel),
	}
}

func (r *Registry) SetPresenceHandler(fn func(userID string, online bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onPresence = fn
}

// Register installs ch as the user's live channel. A prior channel for the
// same user is superseded and closed.
func (r *Registry) Register(userID string, ch Channel) {
	r.mu.Lock()
	prev, had := r.channels[userID]
	r.channels[userID] = ch
	fn := r.onPresence
	r.mu.Unlock()

	if had {
		if err := prev.Close(); err != nil {
			log.Printf("registry: closing superseded channel for %s: %v", userID, err)
		}
	}
	if fn != nil && !had {
		fn(userID, true)
	}
}

// Unregister removes and closes the user's channel, if any. Used on explicit
// logout.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	ch, ok := r.channels[userID]
	if ok {
		delete(r.channels, userID)
	}
	fn := r.onPresence
	r.mu.Unlock()

	if !ok {
		return
	}
	if err := ch.Close(); err != nil {
		log.Printf("registry: closing channel for %s: %v", userID, err)
	}
	if fn != nil {
		fn(userID, false)
	}
}

// Drop removes the channel only if it is still the user's current one, so a
// disconnect racing a superseding Register never evicts the new channel.
func (r *Registry) Drop(userID string, ch Channel) {
	r.mu.Lock()
	current, ok := r.channels[userID]
	if !ok || current != ch {
		r.mu.Unlock()
		return
	}
	delete(r.channels, userID)
	fn := r.onPresence
	r.mu.Unlock()

	_ = ch.Close()
	if fn != nil {
		fn(userID, false)
	}
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[userID]
	return ok && ch.Alive()
}

// Send delivers data to the user's channel, best-effort. An offline user or a
// failed write drops the message; the error is for observability only and
// must never trigger a retry upstream.
func (r *Registry) Send(userID string, data []byte) error {
	r.mu.Lock()
	ch, ok := r.channels[userID]
	r.mu.Unlock()

	if !ok {
		return ErrNotConnected
	}
	return ch.Send(data)
}

// Shutdown closes every live channel. No presence events are emitted; the
// process is going away.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	channels := r.channels
	r.channels = make(map[string]Channel)
	r.mu.Unlock()

	for userID, ch := range channels {
		if err := ch.Close(); err != nil {
			log.Printf("registry: closing channel for %s on shutdown: %v", userID, err)
		}
	}
}
