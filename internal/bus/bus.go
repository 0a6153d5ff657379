// Package bus implements C12, the event bus: fan-out of Detections to
// subscribed consumers with bounded, oldest-drop-on-overflow
// backpressure per subscriber. Adapted from the teacher's
// dashboard.Server client map plus per-connection WriteJSON loop, but
// replaces the unbounded "for client := range s.clients { client.WriteJSON(...) }"
// broadcast with a proper per-subscriber queue so one slow subscriber
// cannot delay another (spec §4.12).
package bus

import (
	"sync"

	"github.com/google/uuid"

	"github.com/justin4957/logflow-anomaly-detector/internal/metrics"
	"github.com/justin4957/logflow-anomaly-detector/pkg/models"
)

// Subscription is a per-session queue handed back from Subscribe.
type Subscription struct {
	ID string
	C  <-chan models.Detection
}

type subscriber struct {
	id    string
	queue chan models.Detection

	mu      sync.Mutex
	dropped int64
}

// Bus fans out Detections to every current subscriber. Publish never
// blocks the producer: on overflow it drops the oldest item already
// queued for that subscriber (spec §4.12).
type Bus struct {
	depth int

	mu   sync.RWMutex
	subs map[string]*subscriber
}

// New creates a Bus whose per-subscriber queues hold depth items.
func New(depth int) *Bus {
	if depth <= 0 {
		depth = 256
	}
	return &Bus{depth: depth, subs: make(map[string]*subscriber)}
}

// Subscribe creates a new per-session queue.
func (b *Bus) Subscribe() Subscription {
	s := &subscriber{id: uuid.NewString(), queue: make(chan models.Detection, b.depth)}

	b.mu.Lock()
	b.subs[s.id] = s
	b.mu.Unlock()

	return Subscription{ID: s.id, C: s.queue}
}

// Unsubscribe drains and releases the resources for id.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	s, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.mu.Unlock()

	if !ok {
		return
	}
	for {
		select {
		case <-s.queue:
		default:
			return
		}
	}
}

// Publish fans d out to every subscriber. FIFO per subscriber; no global
// ordering guarantee across subscribers. Never blocks: a full queue has
// its oldest item dropped to make room, and the drop counter advances.
func (b *Bus) Publish(d models.Detection) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, s := range b.subs {
		s.offer(d)
	}
}

func (s *subscriber) offer(d models.Detection) {
	select {
	case s.queue <- d:
		return
	default:
	}

	// Queue full: drop the oldest queued item, then retry once. A
	// concurrent drain by the subscriber's own reader can race this, but
	// the worst outcome is an extra successful non-blocking send, never
	// a block.
	s.mu.Lock()
	select {
	case <-s.queue:
		s.dropped++
		metrics.EventBusDropsTotal.Inc()
	default:
	}
	s.mu.Unlock()

	select {
	case s.queue <- d:
	default:
	}
}

// DropCount reports how many items have been dropped for subscriber id.
func (b *Bus) DropCount(id string) int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s, ok := b.subs[id]
	if !ok {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// SubscriberCount reports the number of currently attached subscribers,
// for telemetry.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
