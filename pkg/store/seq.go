package store

import (
	"context"
	"database/sql"
	"errors"

	"agentbus/pkg/model"
)

// nextSeqTx allocates the next bus-wide sequence number inside the
// caller's transaction. The counter row is updated and read atomically,
// so a rolled-back insert leaves no gap visible to readers.
func nextSeqTx(ctx context.Context, tx *sql.Tx) (int64, error) {
	var seq int64
	err := tx.QueryRowContext(ctx,
		"UPDATE seq_counter SET val = val + 1 WHERE id = 1 RETURNING val").Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, model.Internal(errNoCounter, "allocating sequence")
	}
	if err != nil {
		return 0, model.Internal(err, "allocating sequence")
	}
	return seq, nil
}
