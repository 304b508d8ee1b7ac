package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"agentbus/pkg/model"
)

const threadColumns = "id, topic, status, prev_status, summary, metadata, created_at"

// InsertThread creates a new thread in status discuss.
func (s *Store) InsertThread(ctx context.Context, topic string, metadata map[string]string) (*model.Thread, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, model.InvalidInput("topic must not be empty")
	}

	t := &model.Thread{
		ID:        uuid.NewString(),
		Topic:     topic,
		Status:    model.StatusDiscuss,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO threads (id, topic, status, prev_status, summary, metadata, created_at)
			VALUES (?, ?, ?, '', '', ?, ?)`,
			t.ID, t.Topic, string(t.Status), model.EncodeMetadata(t.Metadata), t.CreatedAt)
		return err
	})
	if err != nil {
		return nil, model.Internal(err, "inserting thread")
	}
	return t, nil
}

// FetchThread returns a thread by id.
func (s *Store) FetchThread(ctx context.Context, id string) (*model.Thread, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+threadColumns+" FROM threads WHERE id = ?", id)
	t, err := scanThread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFound("thread %s not found", id)
	}
	if err != nil {
		return nil, model.Internal(err, "fetching thread")
	}
	return t, nil
}

// ListThreads returns threads, optionally filtered by status. Archived
// threads are hidden unless includeArchived is set or the filter names
// archived explicitly.
func (s *Store) ListThreads(ctx context.Context, statusFilter model.ThreadStatus, includeArchived bool) ([]*model.Thread, error) {
	query := "SELECT " + threadColumns + " FROM threads"
	var (
		conds []string
		args  []any
	)
	if statusFilter != "" {
		if !statusFilter.Valid() {
			return nil, model.InvalidInput("unknown status %q", statusFilter)
		}
		conds = append(conds, "status = ?")
		args = append(args, string(statusFilter))
	} else if !includeArchived {
		conds = append(conds, "status != ?")
		args = append(args, string(model.StatusArchived))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.Internal(err, "listing threads")
	}
	defer rows.Close()

	var out []*model.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, model.Internal(err, "scanning thread")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Internal(err, "listing threads")
	}
	return out, nil
}

// UpdateThreadStatus moves a thread between non-terminal states or into
// closed. Archive and unarchive have dedicated operations so the prior
// status survives.
func (s *Store) UpdateThreadStatus(ctx context.Context, id string, status model.ThreadStatus) error {
	if !status.Valid() || status == model.StatusArchived {
		return model.InvalidInput("cannot set status %q directly", status)
	}
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		cur, err := threadStatusTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur == model.StatusClosed || cur == model.StatusArchived {
			return model.Conflict("thread %s is %s", id, cur)
		}
		_, err = tx.ExecContext(ctx, "UPDATE threads SET status = ? WHERE id = ?", string(status), id)
		if err != nil {
			return model.Internal(err, "updating thread status")
		}
		return nil
	})
}

// CloseThread sets status closed, optionally recording a summary.
func (s *Store) CloseThread(ctx context.Context, id, summary string) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		cur, err := threadStatusTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur == model.StatusClosed || cur == model.StatusArchived {
			return model.Conflict("thread %s is %s", id, cur)
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE threads SET status = ?, summary = ? WHERE id = ?",
			string(model.StatusClosed), summary, id)
		if err != nil {
			return model.Internal(err, "closing thread")
		}
		return nil
	})
}

// ArchiveThread hides a thread, keeping its prior status for unarchive.
func (s *Store) ArchiveThread(ctx context.Context, id string) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		cur, err := threadStatusTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur == model.StatusArchived {
			return model.Conflict("thread %s is already archived", id)
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE threads SET prev_status = ?, status = ? WHERE id = ?",
			string(cur), string(model.StatusArchived), id)
		if err != nil {
			return model.Internal(err, "archiving thread")
		}
		return nil
	})
}

// UnarchiveThread restores the pre-archive status.
func (s *Store) UnarchiveThread(ctx context.Context, id string) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		cur, err := threadStatusTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur != model.StatusArchived {
			return model.Conflict("thread %s is not archived", id)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE threads
			SET status = CASE WHEN prev_status = '' THEN 'discuss' ELSE prev_status END,
			    prev_status = ''
			WHERE id = ?`, id)
		if err != nil {
			return model.Internal(err, "unarchiving thread")
		}
		return nil
	})
}

// DeleteThread hard-deletes a thread; the foreign key cascades to its
// messages.
func (s *Store) DeleteThread(ctx context.Context, id string) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM threads WHERE id = ?", id)
		if err != nil {
			return model.Internal(err, "deleting thread")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return model.NotFound("thread %s not found", id)
		}
		return nil
	})
}

func threadStatusTx(ctx context.Context, tx *sql.Tx, id string) (model.ThreadStatus, error) {
	var status string
	err := tx.QueryRowContext(ctx, "SELECT status FROM threads WHERE id = ?", id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", model.NotFound("thread %s not found", id)
	}
	if err != nil {
		return "", model.Internal(err, "reading thread status")
	}
	return model.ThreadStatus(status), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanThread(r rowScanner) (*model.Thread, error) {
	var (
		t          model.Thread
		status     string
		prevStatus string
		metadata   string
	)
	if err := r.Scan(&t.ID, &t.Topic, &status, &prevStatus, &t.Summary, &metadata, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Status = model.ThreadStatus(status)
	t.PrevStatus = model.ThreadStatus(prevStatus)
	t.Metadata = model.DecodeMetadata(metadata)
	return &t, nil
}
