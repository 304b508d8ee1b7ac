// Package presence tracks which agents are alive. Liveness is derived
// from heartbeat recency; a background sweeper notices silent agents
// and announces the transition exactly once.
package presence

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

// Manager owns agent registration, heartbeats and the offline sweeper.
type Manager struct {
	store    *store.Store
	bus      *bus.EventBus
	log      *logger.Logger
	timeout  time.Duration
	interval time.Duration

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	ticker *time.Ticker
	wg     sync.WaitGroup

	// online remembers which agents we last saw alive so the sweeper
	// emits one offline event per transition, not one per sweep.
	mu     sync.Mutex
	online map[string]string // agent id -> name
}

// New creates a presence manager. Call Start to begin sweeping.
func New(st *store.Store, eventBus *bus.EventBus, log *logger.Logger, heartbeatTimeout, sweepInterval time.Duration) *Manager {
	if heartbeatTimeout <= 0 {
		heartbeatTimeout = 30 * time.Second
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:    st,
		bus:      eventBus,
		log:      log,
		timeout:  heartbeatTimeout,
		interval: sweepInterval,
		ctx:      ctx,
		cancel:   cancel,
		online:   make(map[string]string),
	}
}

// Start launches the sweeper loop.
func (m *Manager) Start() error {
	agents, err := m.store.ListAgents(m.ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	m.mu.Lock()
	for _, a := range agents {
		if a.Online(now, m.timeout) {
			m.online[a.ID] = a.Name
		}
	}
	m.mu.Unlock()

	m.ticker = time.NewTicker(m.interval)
	m.wg.Add(1)
	go m.run()

	m.log.Info("Presence sweeper started",
		zap.Duration("timeout", m.timeout),
		zap.Duration("interval", m.interval))
	return nil
}

// Stop halts the sweeper and waits for it to drain.
func (m *Manager) Stop() error {
	if m.ticker != nil {
		m.ticker.Stop()
	}
	m.cancel()
	m.wg.Wait()
	return nil
}

// Register creates the agent and announces it online.
func (m *Manager) Register(ctx context.Context, name, ide, mdl, capabilities string) (*model.Agent, error) {
	a, err := m.store.RegisterAgent(ctx, name, ide, mdl, capabilities)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.online[a.ID] = a.Name
	m.mu.Unlock()

	m.bus.Publish(model.NewEvent(model.EventAgentOnline, map[string]any{
		"agent_id":   a.ID,
		"agent_name": a.Name,
	}))
	m.log.Info("Agent registered", zap.String("agent_id", a.ID), zap.String("name", a.Name))
	return a, nil
}

// Heartbeat refreshes an agent's liveness. A heartbeat from an agent
// whose previous heartbeat had already lapsed re-announces it online,
// whether or not the sweeper had declared it offline yet.
func (m *Manager) Heartbeat(ctx context.Context, id, token string) (*model.Agent, error) {
	prior, err := m.store.TouchHeartbeat(ctx, id, token)
	if err != nil {
		return nil, err
	}

	wasOffline := !prior.Online(time.Now().UTC(), m.timeout)

	m.mu.Lock()
	m.online[prior.ID] = prior.Name
	m.mu.Unlock()

	if wasOffline {
		m.bus.Publish(model.NewEvent(model.EventAgentOnline, map[string]any{
			"agent_id":   prior.ID,
			"agent_name": prior.Name,
		}))
	}
	return prior, nil
}

// Unregister removes the agent and announces it offline.
func (m *Manager) Unregister(ctx context.Context, id, token string) error {
	removed, err := m.store.UnregisterAgent(ctx, id, token)
	if err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.online, id)
	m.mu.Unlock()

	m.bus.Publish(model.NewEvent(model.EventAgentOffline, map[string]any{
		"agent_id":   removed.ID,
		"agent_name": removed.Name,
	}))
	m.log.Info("Agent unregistered", zap.String("agent_id", id), zap.String("name", removed.Name))
	return nil
}

// SetTyping records a typing signal and broadcasts it. Typing is pure
// presence, nothing is written to any thread.
func (m *Manager) SetTyping(ctx context.Context, agentID, threadID string, typing bool) error {
	a, err := m.store.FetchAgent(ctx, agentID)
	if err != nil {
		return err
	}
	if threadID != "" {
		if _, err := m.store.FetchThread(ctx, threadID); err != nil {
			return err
		}
	}
	if err := m.store.TouchActivity(ctx, agentID, model.ActivityTyping); err != nil {
		return err
	}

	m.bus.Publish(model.NewEvent(model.EventAgentTyping, map[string]any{
		"agent_id":   a.ID,
		"agent_name": a.Name,
		"thread_id":  threadID,
		"typing":     typing,
	}))
	return nil
}

// List returns every stored agent; state is not derived here.
func (m *Manager) List(ctx context.Context) ([]*model.Agent, error) {
	return m.store.ListAgents(ctx)
}

// Timeout reports the configured heartbeat timeout.
func (m *Manager) Timeout() time.Duration {
	return m.timeout
}

// run is the sweeper loop.
func (m *Manager) run() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ticker.C:
			if err := m.sweep(); err != nil {
				m.log.Warn("Presence sweep failed", zap.Error(err))
			}
		case <-m.ctx.Done():
			return
		}
	}
}

// sweep compares stored heartbeats against the in-memory online set
// and publishes agent.offline for every agent that went silent.
func (m *Manager) sweep() error {
	agents, err := m.store.ListAgents(m.ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	alive := make(map[string]string, len(agents))
	for _, a := range agents {
		if a.Online(now, m.timeout) {
			alive[a.ID] = a.Name
		}
	}

	var wentOffline []model.Agent
	m.mu.Lock()
	for id, name := range m.online {
		if _, ok := alive[id]; !ok {
			wentOffline = append(wentOffline, model.Agent{ID: id, Name: name})
		}
	}
	m.online = alive
	m.mu.Unlock()

	for _, a := range wentOffline {
		m.bus.Publish(model.NewEvent(model.EventAgentOffline, map[string]any{
			"agent_id":   a.ID,
			"agent_name": a.Name,
		}))
		m.log.Info("Agent went offline", zap.String("agent_id", a.ID), zap.String("name", a.Name))
	}
	return nil
}
