package api

import "sync"

// Subscription is a live log stream for one run. Read entries from C; the
// channel is closed when the run reaches a terminal status or the
// subscription is closed.
type Subscription struct {
	ch   <-chan LogEntry
	stop func()
	once sync.Once
}

// NewSubscription wraps a delivery channel and a release function. It is
// used by broadcaster implementations; applications only consume
// subscriptions returned by Engine.SubscribeLogs.
func NewSubscription(ch <-chan LogEntry, stop func()) *Subscription {
	return &Subscription{ch: ch, stop: stop}
}

// C returns the entry channel.
func (s *Subscription) C() <-chan LogEntry { return s.ch }

// Close releases the subscription. It is safe to call multiple times and
// safe to call concurrently with deliveries.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
}
