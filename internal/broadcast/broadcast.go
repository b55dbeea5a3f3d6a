// Package broadcast fans out run log entries to live subscribers.
//
// Delivery is best-effort: a subscriber whose buffer is full loses entries,
// the publishing goroutine never blocks. Per-subscriber ordering follows
// publish order.
package broadcast

import (
	"sync"

	"github.com/mhalonen/virta/pkg/api"
)

// DefaultBuffer is the per-subscriber channel capacity used when the
// subscriber does not ask for one.
const DefaultBuffer = 64

// Broadcaster multiplexes the log stream of each live run to any number of
// subscribers.
type Broadcaster struct {
	mu     sync.Mutex
	topics map[string]*topic
}

type topic struct {
	mu      sync.Mutex
	history []api.LogEntry
	subs    map[int]chan api.LogEntry
	nextSub int
	closed  bool
}

// New creates an empty Broadcaster.
func New() *Broadcaster {
	return &Broadcaster{topics: make(map[string]*topic)}
}

// Open registers a run so entries can be published and subscribers attached.
// Opening an already-open run is a no-op.
func (b *Broadcaster) Open(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.topics[runID]; !ok {
		b.topics[runID] = &topic{subs: make(map[int]chan api.LogEntry)}
	}
}

// Publish delivers an entry to every subscriber of the run. Subscribers with
// a full buffer miss the entry; the run's own record is unaffected.
func (b *Broadcaster) Publish(runID string, entry api.LogEntry) {
	t := b.topic(runID)
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.history = append(t.history, entry)
	for _, ch := range t.subs {
		select {
		case ch <- entry:
		default:
			// Slow subscriber: drop rather than block the run.
		}
	}
}

// Subscribe attaches a subscriber to a live run. With replay, the entries
// published so far are preloaded ahead of live delivery. It returns
// (nil, false) when the run is not open (never started here, or already
// terminal).
func (b *Broadcaster) Subscribe(runID string, replay bool, buffer int) (*api.Subscription, bool) {
	t := b.topic(runID)
	if t == nil {
		return nil, false
	}

	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, false
	}

	capacity := buffer
	if replay {
		capacity += len(t.history)
	}
	ch := make(chan api.LogEntry, capacity)
	if replay {
		for _, entry := range t.history {
			ch <- entry
		}
	}

	id := t.nextSub
	t.nextSub++
	t.subs[id] = ch

	stop := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(ch)
		}
	}
	return api.NewSubscription(ch, stop), true
}

// Close ends the run's stream: every subscriber channel is closed once its
// buffered entries are drained by the reader, and the topic is discarded.
func (b *Broadcaster) Close(runID string) {
	b.mu.Lock()
	t := b.topics[runID]
	delete(b.topics, runID)
	b.mu.Unlock()

	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for id, ch := range t.subs {
		delete(t.subs, id)
		close(ch)
	}
}

func (b *Broadcaster) topic(runID string) *topic {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.topics[runID]
}
