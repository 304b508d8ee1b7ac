// Package bus provides the in-memory event fan-out: every mutation of
// the durable log produces a typed event delivered to all SSE
// subscribers and, through a separate no-drop path, to blocked waiters.
package bus

import (
	"sync"

	"go.uber.org/zap"

	"agentbus/pkg/logger"
	"agentbus/pkg/model"
)

// DefaultBufferSize is the per-subscriber queue capacity.
const DefaultBufferSize = 256

// Tap observes every published event synchronously. Taps never miss an
// event; they must return quickly.
type Tap func(ev *model.Event)

// Subscription is one consumer's bounded event queue. When the queue
// overflows, the oldest event is dropped; consumers reconcile by
// re-reading state through the log.
type Subscription struct {
	id     uint64
	mu     sync.Mutex
	queue  []*model.Event
	cap    int
	notify chan struct{}
	closed bool
}

// Drain returns and clears the queued events without blocking.
func (s *Subscription) Drain() []*model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.queue
	s.queue = nil
	return out
}

// Notify signals when at least one event is queued. The channel carries
// at most one pending signal; drain after receiving.
func (s *Subscription) Notify() <-chan struct{} {
	return s.notify
}

func (s *Subscription) push(ev *model.Event) (dropped bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if len(s.queue) >= s.cap {
		s.queue = s.queue[1:]
		dropped = true
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return dropped
}

func (s *Subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()
}

// EventBus fans events out to subscribers and taps.
type EventBus struct {
	log        *logger.Logger
	bufferSize int

	mu          sync.RWMutex
	subscribers map[uint64]*Subscription
	taps        []Tap
	nextID      uint64

	// Metrics
	published   uint64
	dropped     uint64
	metricsLock sync.Mutex
}

// New creates a new event bus.
func New(log *logger.Logger, bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &EventBus{
		log:         log,
		bufferSize:  bufferSize,
		subscribers: make(map[uint64]*Subscription),
	}
}

// Subscribe registers a new subscriber and returns its handle.
func (b *EventBus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		id:     b.nextID,
		cap:    b.bufferSize,
		notify: make(chan struct{}, 1),
	}
	b.subscribers[sub.id] = sub
	b.log.Debug("Subscriber registered", zap.Uint64("id", sub.id))
	return sub
}

// Unsubscribe removes a subscriber. Idempotent.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	_, ok := b.subscribers[sub.id]
	delete(b.subscribers, sub.id)
	b.mu.Unlock()

	if ok {
		sub.close()
		b.log.Debug("Subscriber removed", zap.Uint64("id", sub.id))
	}
}

// AddTap registers a no-drop observer. Taps cannot be removed; they
// live as long as the bus.
func (b *EventBus) AddTap(tap Tap) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.taps = append(b.taps, tap)
}

// Publish delivers a copy of the event to every subscriber queue and
// invokes every tap. Events published in program order by one writer
// are observed in that order.
func (b *EventBus) Publish(ev *model.Event) {
	b.mu.RLock()
	taps := b.taps
	subs := make([]*Subscription, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, tap := range taps {
		tap(ev)
	}

	var droppedFrom []uint64
	for _, s := range subs {
		if s.push(ev) {
			droppedFrom = append(droppedFrom, s.id)
		}
	}

	b.metricsLock.Lock()
	b.published++
	b.dropped += uint64(len(droppedFrom))
	b.metricsLock.Unlock()

	if len(droppedFrom) > 0 {
		b.log.Debug("Subscriber queue overflow, oldest event dropped",
			zap.String("type", string(ev.Type)),
			zap.Uint64s("subscribers", droppedFrom))
	}
}

// Close removes every subscriber, waking their notify channels so SSE
// loops exit promptly.
func (b *EventBus) Close() {
	b.mu.Lock()
	subs := b.subscribers
	b.subscribers = make(map[uint64]*Subscription)
	b.mu.Unlock()

	for _, s := range subs {
		s.close()
		select {
		case s.notify <- struct{}{}:
		default:
		}
	}
	b.log.Info("Event bus closed", zap.Int("subscribers", len(subs)))
}

// Metrics returns publish and drop counters.
func (b *EventBus) Metrics() map[string]uint64 {
	b.metricsLock.Lock()
	defer b.metricsLock.Unlock()
	return map[string]uint64{
		"published": b.published,
		"dropped":   b.dropped,
	}
}
