// Package bus provides the in-memory publish/subscribe dispatcher that
// connects the pipeline stages to their consumers.
//
// Delivery is best-effort and synchronous: Publish invokes the callbacks for
// a topic in subscription order on the publisher's goroutine, so a source
// that publishes from a single goroutine gives its subscribers frames in
// receive order. There is no durability across restarts.
package bus

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Topic names a payload stream on the bus.
type Topic string

const (
	// TopicConnection carries tracking.ConnState transitions.
	TopicConnection Topic = "connection"

	// TopicSession carries tracking.SessionState transitions.
	TopicSession Topic = "session"

	// TopicTelemetry carries normalized telemetry.Frame values.
	TopicTelemetry Topic = "telemetry"

	// TopicAlert carries alert.Alert values.
	TopicAlert Topic = "alert"

	// TopicError carries non-fatal pipeline errors (malformed frames,
	// backend error messages) as error values.
	TopicError Topic = "error"
)

// Subscription identifies one (topic, callback) registration.
// Zero value is invalid; obtain one from Subscribe.
type Subscription struct {
	id    uuid.UUID
	topic Topic
}

// Topic returns the topic this subscription is registered on.
func (s Subscription) Topic() Topic {
	return s.topic
}

type subscriber struct {
	id uuid.UUID
	fn func(payload any)

	// active is cleared on unsubscribe so a publish that snapshotted this
	// subscriber before removal still skips it.
	active atomic.Bool
}

// Bus is a typed topic registry. The zero value is not usable; use New.
// All methods are safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic][]*subscriber
	logger *slog.Logger
}

// New creates an empty Bus. logger may be nil.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[Topic][]*subscriber),
		logger: logger,
	}
}

// Subscribe registers fn for topic and returns a handle for Unsubscribe.
// Callbacks on the same topic run in subscription order.
func (b *Bus) Subscribe(topic Topic, fn func(payload any)) Subscription {
	sub := &subscriber{
		id: uuid.New(),
		fn: fn,
	}
	sub.active.Store(true)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	return Subscription{id: sub.id, topic: topic}
}

// Unsubscribe removes the subscription. After it returns, the callback
// receives no further events. Unknown handles are a no-op.
func (b *Bus) Unsubscribe(s Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[s.topic]
	for i, sub := range list {
		if sub.id == s.id {
			sub.active.Store(false)
			b.subs[s.topic] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish delivers payload to every subscriber of topic, in subscription
// order. A panic in one callback is recovered and logged; the remaining
// callbacks and the publisher are unaffected.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	list := b.subs[topic]
	snapshot := make([]*subscriber, len(list))
	copy(snapshot, list)
	b.mu.RUnlock()

	for _, sub := range snapshot {
		if !sub.active.Load() {
			continue
		}
		b.dispatch(topic, sub, payload)
	}
}

func (b *Bus) dispatch(topic Topic, sub *subscriber, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus subscriber panicked",
				"topic", string(topic),
				"panic", r,
			)
		}
	}()
	sub.fn(payload)
}

// SubscriberCount returns the number of live subscriptions on a topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// SubscribeTo registers a callback that only fires for payloads of type T,
// giving subscribers compile-time payload typing. Payloads of any other
// type on the topic are ignored.
func SubscribeTo[T any](b *Bus, topic Topic, fn func(T)) Subscription {
	return b.Subscribe(topic, func(payload any) {
		if v, ok := payload.(T); ok {
			fn(v)
		}
	})
}
