package realtime

import "sync"

// PresenceDirectory resolves who should hear about a user's presence change.
// The saved-verifier graph backing it lives outside this core; MemoryDirectory
// is the in-process implementation used by the server and tests.
type PresenceDirectory interface {
	WatchersOf(userID string) []string
}

type MemoryDirectory struct {
	mu       sync.Mutex
	watchers map[string]map[string]struct{}
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{watchers: make(map[string]map[string]struct{})}
}

// Watch makes watcherID interested in userID's presence.
func (d *MemoryDirectory) Watch(userID, watcherID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	set, ok := d.watchers[userID]
	if !ok {
		set = make(map[string]struct{})
		d.watchers[userID] = set
	}
	set[watcherID] = struct{}{}
}

func (d *MemoryDirectory) Unwatch(userID, watcherID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if set, ok := d.watchers[userID]; ok {
		delete(set, watcherID)
		if len(set) == 0 {
			delete(d.watchers, userID)
		}
	}
}

func (d *MemoryDirectory) WatchersOf(userID string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	set := d.watchers[userID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
