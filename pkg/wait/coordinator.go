// Package wait implements the long-poll primitive: suspend a caller
// until a thread gains messages past its cursor, a timeout elapses, or
// the caller goes away.
package wait

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"agentbus/pkg/bus"
	"agentbus/pkg/logger"
	"agentbus/pkg/model"
	"agentbus/pkg/store"
)

// safetyPollInterval bounds how stale a suspended waiter can get if a
// wake-up signal is lost. Never tighter than one second.
const safetyPollInterval = time.Second

// Coordinator parks waiters on per-thread conditions and wakes them
// from msg.new events.
type Coordinator struct {
	store *store.Store
	log   *logger.Logger

	mu      sync.Mutex
	waiters map[string]map[*waiter]struct{}
	closed  bool
	done    chan struct{}
}

type waiter struct {
	wake chan struct{}
}

// New creates a coordinator and taps the event bus for msg.new.
func New(st *store.Store, eventBus *bus.EventBus, log *logger.Logger) *Coordinator {
	c := &Coordinator{
		store:   st,
		log:     log,
		waiters: make(map[string]map[*waiter]struct{}),
		done:    make(chan struct{}),
	}
	eventBus.AddTap(func(ev *model.Event) {
		if ev.Type == model.EventMsgNew {
			c.signal(ev.ThreadID())
		}
	})
	return c
}

// Wait returns all messages in the thread with seq > afterSeq. If none
// exist it suspends up to timeout. Timeout and cancellation both yield
// an empty result, never an error; only an unknown thread escapes.
func (c *Coordinator) Wait(ctx context.Context, threadID string, afterSeq int64, timeout time.Duration) ([]*model.Message, error) {
	if _, err := c.store.FetchThread(ctx, threadID); err != nil {
		return nil, err
	}

	msgs, err := c.store.ListMessages(ctx, threadID, afterSeq, 0, true)
	if err != nil {
		return nil, err
	}
	if len(msgs) > 0 {
		return msgs, nil
	}

	w := &waiter{wake: make(chan struct{}, 1)}
	c.add(threadID, w)
	defer c.remove(threadID, w)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	safety := time.NewTicker(safetyPollInterval)
	defer safety.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, nil
		case <-c.done:
			return nil, nil
		case <-deadline.C:
			return nil, nil
		case <-w.wake:
		case <-safety.C:
		}

		// The wake may be spurious or for a racing write that rolled
		// back; re-query and go back to sleep if still empty.
		msgs, err := c.store.ListMessages(ctx, threadID, afterSeq, 0, true)
		if err != nil {
			if model.KindOf(err) == model.KindNotFound {
				return nil, err
			}
			c.log.Warn("Wait re-query failed", zap.String("thread_id", threadID), zap.Error(err))
			continue
		}
		if len(msgs) > 0 {
			return msgs, nil
		}
	}
}

// Shutdown wakes every waiter so the process can quiesce.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)

	n := 0
	for _, set := range c.waiters {
		n += len(set)
	}
	if n > 0 {
		c.log.Info("Waking suspended waiters for shutdown", zap.Int("count", n))
	}
}

// PendingWaiters reports how many callers are currently suspended.
func (c *Coordinator) PendingWaiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, set := range c.waiters {
		n += len(set)
	}
	return n
}

func (c *Coordinator) add(threadID string, w *waiter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set := c.waiters[threadID]
	if set == nil {
		set = make(map[*waiter]struct{})
		c.waiters[threadID] = set
	}
	set[w] = struct{}{}
}

func (c *Coordinator) remove(threadID string, w *waiter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set := c.waiters[threadID]
	delete(set, w)
	if len(set) == 0 {
		delete(c.waiters, threadID)
	}
}

func (c *Coordinator) signal(threadID string) {
	c.mu.Lock()
	set := c.waiters[threadID]
	ws := make([]*waiter, 0, len(set))
	for w := range set {
		ws = append(ws, w)
	}
	c.mu.Unlock()

	for _, w := range ws {
		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
}
