package notify

import (
	"context"
	"errors"
	"log"
	"sync"

	"taskpact.com/taskpact/internal/realtime"
)

type delivery struct {
	userID string
	data   []byte
}

// Notifier fans a message out to a precomputed set of targets through the
// connection registry. Delivery is best-effort and purely additive to the
// state transition that already committed: offline targets and transport
// errors drop the message, nothing is queued or retried.
//
// Dispatch runs on a fixed set of workers draining a bounded queue, so a
// burst of transitions never spawns unbounded goroutines.
type Notifier struct {
	registry *realtime.Registry
	queue    chan delivery
	wg       sync.WaitGroup

	// mu serializes queue closure against publishers, so a Publish racing
	// Shutdown (a timed-out scan still finishing, for instance) drops its
	// message instead of writing to a closed channel.
	mu     sync.RWMutex
	closed bool
}

func NewNotifier(registry *realtime.Registry, workers, queueSize int) *Notifier {
	n := &Notifier{
		registry: registry,
		queue:    make(chan delivery, queueSize),
	}

	for i := 1; i <= workers; i++ {
		n.wg.Add(1)
		go n.worker(i)
	}

	return n
}

// Publish encodes msg once and enqueues one delivery per target. A full
// queue drops the remaining deliveries; the caller never blocks on fan-out.
func (n *Notifier) Publish(msg Message, targets ...string) {
	data, err := msg.Encode()
	if err != nil {
		log.Printf("notify: encoding %s message: %v", msg.Type, err)
		return
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		log.Printf("notify: shutting down, dropping %s for %d targets", msg.Type, len(targets))
		return
	}

	for _, userID := range targets {
		select {
		case n.queue <- delivery{userID: userID, data: data}:
		default:
			log.Printf("notify: queue full, dropping %s for %s", msg.Type, userID)
		}
	}
}

func (n *Notifier) worker(workerID int) {
	defer n.wg.Done()

	for d := range n.queue {
		if err := n.registry.Send(d.userID, d.data); err != nil {
			if errors.Is(err, realtime.ErrNotConnected) {
				continue
			}
			log.Printf("notify: worker %d delivery to %s failed: %v", workerID, d.userID, err)
		}
	}
}

// Shutdown stops accepting work and waits for in-flight deliveries, up to the
// context deadline. Safe to call once; later publishes become no-ops.
func (n *Notifier) Shutdown(ctx context.Context) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Println("notify: shutdown timed out with deliveries in flight")
	}
}
