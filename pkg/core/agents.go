package core

import (
	"context"
	"time"

	"agentbus/pkg/model"
)

// AgentView is an agent row projected with its derived liveness.
type AgentView struct {
	*model.Agent
	IsOnline bool             `json:"is_online"`
	State    model.AgentState `json:"state"`
}

// RegisterAgent creates an agent and returns it with its token. The
// token is only ever disclosed here.
func (a *API) RegisterAgent(ctx context.Context, name, ide, mdl, capabilities string) (*model.Agent, error) {
	return a.presence.Register(ctx, name, ide, mdl, capabilities)
}

// HeartbeatAgent refreshes liveness for a token-holding agent.
func (a *API) HeartbeatAgent(ctx context.Context, id, token string) error {
	_, err := a.presence.Heartbeat(ctx, id, token)
	return err
}

// UnregisterAgent removes an agent from the registry.
func (a *API) UnregisterAgent(ctx context.Context, id, token string) error {
	return a.presence.Unregister(ctx, id, token)
}

// SetTyping broadcasts a typing signal for an agent on a thread.
func (a *API) SetTyping(ctx context.Context, agentID, threadID string, typing bool) error {
	return a.presence.SetTyping(ctx, agentID, threadID, typing)
}

// ListAgents returns all agents with online/state derived at read time.
func (a *API) ListAgents(ctx context.Context) ([]*AgentView, error) {
	agents, err := a.presence.List(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	timeout := a.presence.Timeout()
	out := make([]*AgentView, 0, len(agents))
	for _, ag := range agents {
		out = append(out, &AgentView{
			Agent:    ag,
			IsOnline: ag.Online(now, timeout),
			State:    ag.State(now, timeout),
		})
	}
	return out, nil
}

// InviteAgent spawns a catalog agent onto an existing thread.
func (a *API) InviteAgent(ctx context.Context, agentName, threadID string) (*model.InviteResult, error) {
	if _, err := a.store.FetchThread(ctx, threadID); err != nil {
		return nil, err
	}
	return a.invites.Invite(ctx, agentName, threadID)
}

// ListCatalog exposes the configured available-agent entries.
func (a *API) ListCatalog() []*model.CatalogEntry {
	return a.invites.Catalog().List()
}
