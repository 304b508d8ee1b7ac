package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"agentbus/pkg/model"
)

const agentColumns = "id, name, ide, model, capabilities, token, last_heartbeat_at, last_activity_at, last_activity_kind, registered_at"

// RegisterAgent creates an agent row with a fresh id and token. An
// empty name derives "<IDE> (<Model>)" and dedups with a numeric
// suffix against existing rows.
func (s *Store) RegisterAgent(ctx context.Context, name, ide, mdl, capabilities string) (*model.Agent, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = deriveAgentName(ide, mdl)
	}

	now := time.Now().UTC()
	a := &model.Agent{
		ID:               uuid.NewString(),
		IDE:              ide,
		Model:            mdl,
		Capabilities:     capabilities,
		Token:            newToken(),
		LastHeartbeatAt:  now,
		LastActivityAt:   now,
		LastActivityKind: model.ActivityRegister,
		RegisteredAt:     now,
	}

	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		unique, err := dedupeNameTx(ctx, tx, name)
		if err != nil {
			return err
		}
		a.Name = unique
		_, err = tx.ExecContext(ctx, `
			INSERT INTO agents (id, name, ide, model, capabilities, token, last_heartbeat_at, last_activity_at, last_activity_kind, registered_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.Name, a.IDE, a.Model, a.Capabilities, a.Token,
			a.LastHeartbeatAt, a.LastActivityAt, a.LastActivityKind, a.RegisteredAt)
		if err != nil {
			return model.Internal(err, "inserting agent")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// TouchHeartbeat validates the token and refreshes the heartbeat
// timestamp. It returns the agent as it was before the touch so the
// caller can detect an offline-to-online transition.
func (s *Store) TouchHeartbeat(ctx context.Context, id, token string) (*model.Agent, error) {
	var prior *model.Agent
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		a, err := agentByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if a.Token != token {
			return model.Unauthorized("token mismatch for agent %s", id)
		}
		prior = a
		_, err = tx.ExecContext(ctx,
			"UPDATE agents SET last_heartbeat_at = ? WHERE id = ?",
			time.Now().UTC(), id)
		if err != nil {
			return model.Internal(err, "updating heartbeat")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prior, nil
}

// TouchActivity records what the agent last did. Unknown agents are a
// no-op so unattributed calls stay cheap.
func (s *Store) TouchActivity(ctx context.Context, id, kind string) error {
	if id == "" {
		return nil
	}
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"UPDATE agents SET last_activity_at = ?, last_activity_kind = ? WHERE id = ?",
			time.Now().UTC(), kind, id)
		if err != nil {
			return model.Internal(err, "updating activity")
		}
		return nil
	})
}

// UnregisterAgent validates the token and removes the row.
func (s *Store) UnregisterAgent(ctx context.Context, id, token string) (*model.Agent, error) {
	var removed *model.Agent
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		a, err := agentByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if a.Token != token {
			return model.Unauthorized("token mismatch for agent %s", id)
		}
		removed = a
		_, err = tx.ExecContext(ctx, "DELETE FROM agents WHERE id = ?", id)
		if err != nil {
			return model.Internal(err, "deleting agent")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// FetchAgent returns an agent by id.
func (s *Store) FetchAgent(ctx context.Context, id string) (*model.Agent, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+agentColumns+" FROM agents WHERE id = ?", id)
	a, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFound("agent %s not found", id)
	}
	if err != nil {
		return nil, model.Internal(err, "fetching agent")
	}
	return a, nil
}

// ListAgents returns all registered agents.
func (s *Store) ListAgents(ctx context.Context) ([]*model.Agent, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+agentColumns+" FROM agents ORDER BY registered_at ASC")
	if err != nil {
		return nil, model.Internal(err, "listing agents")
	}
	defer rows.Close()

	var out []*model.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, model.Internal(err, "scanning agent")
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Internal(err, "listing agents")
	}
	return out, nil
}

func agentByIDTx(ctx context.Context, tx *sql.Tx, id string) (*model.Agent, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+agentColumns+" FROM agents WHERE id = ?", id)
	a, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFound("agent %s not found", id)
	}
	if err != nil {
		return nil, model.Internal(err, "fetching agent")
	}
	return a, nil
}

func scanAgent(r rowScanner) (*model.Agent, error) {
	var a model.Agent
	if err := r.Scan(&a.ID, &a.Name, &a.IDE, &a.Model, &a.Capabilities, &a.Token,
		&a.LastHeartbeatAt, &a.LastActivityAt, &a.LastActivityKind, &a.RegisteredAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// dedupeNameTx appends " 2", " 3"... until the name is unused.
func dedupeNameTx(ctx context.Context, tx *sql.Tx, base string) (string, error) {
	name := base
	for i := 2; ; i++ {
		var n int
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM agents WHERE name = ?", name).Scan(&n)
		if err != nil {
			return "", model.Internal(err, "checking agent name")
		}
		if n == 0 {
			return name, nil
		}
		name = fmt.Sprintf("%s %d", base, i)
	}
}

func deriveAgentName(ide, mdl string) string {
	ide = strings.TrimSpace(ide)
	mdl = strings.TrimSpace(mdl)
	switch {
	case ide != "" && mdl != "":
		return fmt.Sprintf("%s (%s)", ide, mdl)
	case ide != "":
		return ide
	case mdl != "":
		return mdl
	default:
		return "Agent"
	}
}

func newToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(buf)
}
