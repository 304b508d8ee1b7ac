package store

import (
	"context"
	"database/sql"
	"sync"

	"agentbus/pkg/logger"
)

// Store is the single authoritative serialization point for durable
// state. Reads and writes share the database's single open connection,
// so they never overlap: a read waits for any write transaction in
// progress. Every mutation also takes the write mutex so sequence
// assignment and row inserts are atomic with respect to each other.
type Store struct {
	db      *sql.DB
	log     *logger.Logger
	writeMu sync.Mutex
}

// New creates a Store over an opened database.
func New(db *sql.DB, log *logger.Logger) *Store {
	return &Store{db: db, log: log}
}

// OpenAt opens the database at path and wraps it in a Store.
func OpenAt(ctx context.Context, path string, log *logger.Logger) (*Store, error) {
	db, err := Open(ctx, path, log)
	if err != nil {
		return nil, err
	}
	return New(db, log), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// withWriteTx runs fn inside a transaction under the write lock.
func (s *Store) withWriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
