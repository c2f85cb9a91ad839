package engine

import "sync"

// subscriberQueue is the per-subscriber buffer size. A slow subscriber
// (e.g. a stalled websocket write) gets its own bounded channel so a
// producer (the proxy forwarder appending a log entry) never blocks on it
// — spec.md §5: "delivery to a slow subscriber must not block producers".
const subscriberQueue = 64

// Sink is what a subscriber receives: one log entry per broadcast.
type Sink chan LogEntry

// Broadcaster fans a log entry out to every current subscriber. The
// subscriber set is guarded by its own mutex, held only long enough to
// snapshot or mutate the set — never while sending to a channel.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[Sink]struct{}
}

// NewBroadcaster constructs an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[Sink]struct{})}
}

// Subscribe registers a new sink and returns it.
func (b *Broadcaster) Subscribe() Sink {
	s := make(Sink, subscriberQueue)
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Unsubscribe removes and closes a sink.
func (b *Broadcaster) Unsubscribe(s Sink) {
	b.mu.Lock()
	_, ok := b.subs[s]
	delete(b.subs, s)
	b.mu.Unlock()
	if ok {
		close(s)
	}
}

// Publish delivers entry to every current subscriber, best-effort: a full
// channel (a subscriber that isn't draining fast enough) drops the entry
// for that subscriber rather than blocking.
func (b *Broadcaster) Publish(entry LogEntry) {
	b.mu.Lock()
	sinks := make([]Sink, 0, len(b.subs))
	for s := range b.subs {
		sinks = append(sinks, s)
	}
	b.mu.Unlock()

	for _, s := range sinks {
		select {
		case s <- entry:
		default:
		}
	}
}
