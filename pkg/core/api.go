// Package core is the façade every adapter talks to. It owns the
// store, the event bus, the wait coordinator, presence and the
// invitation executor; adapters receive a *API and nothing else.
// Events are published only after the underlying write has committed.
package core

import (
	"context"

	"agentbus/pkg/bus"
	"agentbus/pkg/config"
	"agentbus/pkg/invite"
	"agentbus/pkg/logger"
	"agentbus/pkg/model"
	"agentbus/pkg/presence"
	"agentbus/pkg/store"
	"agentbus/pkg/version"
	"agentbus/pkg/wait"
)

// API is the single entry point for all bus operations.
type API struct {
	store    *store.Store
	bus      *bus.EventBus
	wait     *wait.Coordinator
	presence *presence.Manager
	invites  *invite.Executor
	cfg      *config.Config
	log      *logger.Logger
}

// New assembles the façade.
func New(st *store.Store, eventBus *bus.EventBus, waiter *wait.Coordinator, pres *presence.Manager, inv *invite.Executor, cfg *config.Config, log *logger.Logger) *API {
	return &API{
		store:    st,
		bus:      eventBus,
		wait:     waiter,
		presence: pres,
		invites:  inv,
		cfg:      cfg,
		log:      log,
	}
}

// Subscribe hands out an event bus handle for SSE consumers.
func (a *API) Subscribe() *bus.Subscription {
	return a.bus.Subscribe()
}

// Unsubscribe releases an SSE handle.
func (a *API) Unsubscribe(sub *bus.Subscription) {
	a.bus.Unsubscribe(sub)
}

// CreateThread opens a new conversation.
func (a *API) CreateThread(ctx context.Context, topic string, metadata map[string]string) (*model.Thread, error) {
	t, err := a.store.InsertThread(ctx, topic, metadata)
	if err != nil {
		return nil, err
	}
	a.bus.Publish(model.NewEvent(model.EventThreadNew, map[string]any{
		"thread_id": t.ID,
		"topic":     t.Topic,
	}))
	return t, nil
}

// GetThread fetches one thread.
func (a *API) GetThread(ctx context.Context, id string) (*model.Thread, error) {
	return a.store.FetchThread(ctx, id)
}

// ListThreads lists threads, optionally filtered by status. Archived
// threads are hidden unless asked for.
func (a *API) ListThreads(ctx context.Context, statusFilter string, includeArchived bool) ([]*model.Thread, error) {
	return a.store.ListThreads(ctx, model.ThreadStatus(statusFilter), includeArchived)
}

// SetThreadState advances the thread state machine.
func (a *API) SetThreadState(ctx context.Context, id string, state string) (*model.Thread, error) {
	status := model.ThreadStatus(state)
	if !status.Valid() || status == model.StatusArchived {
		return nil, model.InvalidInput("invalid thread state %q", state)
	}
	if err := a.store.UpdateThreadStatus(ctx, id, status); err != nil {
		return nil, err
	}
	t, err := a.store.FetchThread(ctx, id)
	if err != nil {
		return nil, err
	}
	a.bus.Publish(model.NewEvent(model.EventThreadState, map[string]any{
		"thread_id": id,
		"state":     string(status),
	}))
	return t, nil
}

// CloseThread terminates a thread and optionally records a summary.
func (a *API) CloseThread(ctx context.Context, id, summary string) (*model.Thread, error) {
	if err := a.store.CloseThread(ctx, id, summary); err != nil {
		return nil, err
	}
	t, err := a.store.FetchThread(ctx, id)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{"thread_id": id}
	if summary != "" {
		payload["summary"] = summary
	}
	a.bus.Publish(model.NewEvent(model.EventThreadClosed, payload))
	return t, nil
}

// ArchiveThread hides a thread from default listings.
func (a *API) ArchiveThread(ctx context.Context, id string) error {
	if err := a.store.ArchiveThread(ctx, id); err != nil {
		return err
	}
	a.bus.Publish(model.NewEvent(model.EventThreadArchived, map[string]any{"thread_id": id}))
	return nil
}

// UnarchiveThread restores an archived thread to its prior status.
func (a *API) UnarchiveThread(ctx context.Context, id string) (*model.Thread, error) {
	if err := a.store.UnarchiveThread(ctx, id); err != nil {
		return nil, err
	}
	t, err := a.store.FetchThread(ctx, id)
	if err != nil {
		return nil, err
	}
	a.bus.Publish(model.NewEvent(model.EventThreadUnarchived, map[string]any{
		"thread_id": id,
		"state":     string(t.Status),
	}))
	return t, nil
}

// DeleteThread removes a thread and its messages permanently.
func (a *API) DeleteThread(ctx context.Context, id string) error {
	if err := a.store.DeleteThread(ctx, id); err != nil {
		return err
	}
	a.bus.Publish(model.NewEvent(model.EventThreadDeleted, map[string]any{"thread_id": id}))
	return nil
}

// BusInfo is the configuration snapshot handed to clients.
type BusInfo struct {
	BaseURL                 string `json:"base_url"`
	Version                 string `json:"version"`
	HeartbeatTimeoutSeconds int    `json:"heartbeat_timeout_seconds"`
	WaitTimeoutSeconds      int    `json:"wait_timeout_seconds"`
	Language                string `json:"language"`
}

// GetBusInfo reports the bus address, version and timeout settings.
func (a *API) GetBusInfo() *BusInfo {
	return &BusInfo{
		BaseURL:                 a.cfg.Server.BaseURL(),
		Version:                 version.GetVersion(),
		HeartbeatTimeoutSeconds: a.cfg.Presence.HeartbeatTimeoutSeconds,
		WaitTimeoutSeconds:      a.cfg.Wait.DefaultTimeoutSeconds,
		Language:                a.cfg.GetLanguage(),
	}
}
