package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"agentbus/pkg/model"
)

const messageColumns = "id, thread_id, seq, author_id, author_name, role, content, mentions, metadata, created_at"

// InsertMessage appends a message to a thread's log. The sequence
// number is allocated from the counter inside the same transaction, so
// a rollback never burns a value observable by readers.
func (s *Store) InsertMessage(ctx context.Context, m *model.Message) (*model.Message, error) {
	if m.ThreadID == "" {
		return nil, model.InvalidInput("thread_id must not be empty")
	}
	if !m.Role.Valid() {
		return nil, model.InvalidInput("unknown role %q", m.Role)
	}
	if m.Content == "" {
		return nil, model.InvalidInput("content must not be empty")
	}

	out := *m
	out.ID = uuid.NewString()
	out.CreatedAt = time.Now().UTC()

	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		status, err := threadStatusTx(ctx, tx, out.ThreadID)
		if err != nil {
			return err
		}
		_ = status // closed and archived threads still accept messages

		seq, err := nextSeqTx(ctx, tx)
		if err != nil {
			return err
		}
		out.Seq = seq

		mentions, err := encodeMentions(out.Mentions)
		if err != nil {
			return model.Internal(err, "encoding mentions")
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO messages (id, thread_id, seq, author_id, author_name, role, content, mentions, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			out.ID, out.ThreadID, out.Seq, out.AuthorID, out.AuthorName,
			string(out.Role), out.Content, mentions,
			model.EncodeMetadata(out.Metadata), out.CreatedAt)
		if err != nil {
			return model.Internal(err, "inserting message")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMessages returns up to limit messages with seq > afterSeq in
// ascending order. includeSystemPrompt=false filters system-role rows
// out of history reads.
func (s *Store) ListMessages(ctx context.Context, threadID string, afterSeq int64, limit int, includeSystemPrompt bool) ([]*model.Message, error) {
	if _, err := s.FetchThread(ctx, threadID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	query := "SELECT " + messageColumns + " FROM messages WHERE thread_id = ? AND seq > ?"
	args := []any{threadID, afterSeq}
	if !includeSystemPrompt {
		query += " AND role != ?"
		args = append(args, string(model.RoleSystem))
	}
	query += " ORDER BY seq ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.Internal(err, "listing messages")
	}
	defer rows.Close()

	var out []*model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, model.Internal(err, "scanning message")
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Internal(err, "listing messages")
	}
	return out, nil
}

// CountMessages returns the number of messages in a thread.
func (s *Store) CountMessages(ctx context.Context, threadID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE thread_id = ?", threadID).Scan(&n)
	if err != nil {
		return 0, model.Internal(err, "counting messages")
	}
	return n, nil
}

// MaxSeq returns the highest sequence number in a thread, 0 if empty.
func (s *Store) MaxSeq(ctx context.Context, threadID string) (int64, error) {
	var n sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(seq) FROM messages WHERE thread_id = ?", threadID).Scan(&n)
	if err != nil {
		return 0, model.Internal(err, "reading max seq")
	}
	return n.Int64, nil
}

func scanMessage(r rowScanner) (*model.Message, error) {
	var (
		m        model.Message
		role     string
		mentions string
		metadata string
	)
	if err := r.Scan(&m.ID, &m.ThreadID, &m.Seq, &m.AuthorID, &m.AuthorName,
		&role, &m.Content, &mentions, &metadata, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Role = model.Role(role)
	m.Metadata = model.DecodeMetadata(metadata)
	if mentions != "" {
		var list []string
		if err := json.Unmarshal([]byte(mentions), &list); err == nil {
			m.Mentions = list
		}
	}
	return &m, nil
}

func encodeMentions(mentions []string) (string, error) {
	if len(mentions) == 0 {
		return "", nil
	}
	b, err := json.Marshal(mentions)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var errNoCounter = errors.New("seq counter row missing")
