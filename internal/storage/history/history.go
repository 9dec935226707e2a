// Package history archives settled batches in a SQLite database so node
// operators can audit past fills. Recording is best effort from the engine's
// point of view; settlement never rolls back over an archiving failure.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/marinerlabs/goseaport/internal/core/order"
)

const schema = `
CREATE TABLE IF NOT EXISTS batches (
	id         TEXT PRIMARY KEY,
	settled_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS batch_orders (
	batch_id    TEXT NOT NULL REFERENCES batches(id),
	order_index INTEGER NOT NULL,
	order_hash  TEXT NOT NULL,
	PRIMARY KEY (batch_id, order_index)
);
CREATE TABLE IF NOT EXISTS executions (
	batch_id        TEXT NOT NULL REFERENCES batches(id),
	execution_index INTEGER NOT NULL,
	item_type       INTEGER NOT NULL,
	token           TEXT NOT NULL,
	identifier      TEXT NOT NULL,
	amount          TEXT NOT NULL,
	recipient       TEXT NOT NULL,
	offerer         TEXT NOT NULL,
	conduit_key     TEXT NOT NULL,
	PRIMARY KEY (batch_id, execution_index)
);
CREATE INDEX IF NOT EXISTS idx_batch_orders_hash ON batch_orders(order_hash);
`

// Store records settled batches. Safe for concurrent use; database/sql
// serializes access to the single SQLite connection.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the fill history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordBatch stores a settled batch, its order hashes and its executions
// under a fresh batch id, atomically.
func (s *Store) RecordBatch(ctx context.Context, orderHashes []common.Hash, executions []order.Execution) error {
	batchID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO batches (id, settled_at) VALUES (?, ?)`,
		batchID, s.now().Unix()); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	for i, hash := range orderHashes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO batch_orders (batch_id, order_index, order_hash) VALUES (?, ?, ?)`,
			batchID, i, hash.Hex()); err != nil {
			return fmt.Errorf("insert batch order %d: %w", i, err)
		}
	}

	for i := range executions {
		e := &executions[i]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO executions
			 (batch_id, execution_index, item_type, token, identifier, amount, recipient, offerer, conduit_key)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			batchID, i, int(e.Item.ItemType), e.Item.Token.Hex(),
			e.Item.Identifier.String(), e.Item.Amount.String(),
			e.Item.Recipient.Hex(), e.Offerer.Hex(), e.ConduitKey.Hex()); err != nil {
			return fmt.Errorf("insert execution %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Fill is one archived execution joined with its batch metadata.
type Fill struct {
	BatchID    string    `json:"batchId"`
	SettledAt  time.Time `json:"settledAt"`
	ItemType   int       `json:"itemType"`
	Token      string    `json:"token"`
	Identifier string    `json:"identifier"`
	Amount     string    `json:"amount"`
	Recipient  string    `json:"recipient"`
	Offerer    string    `json:"offerer"`
}

// RecentFills returns up to limit executions, newest batches first.
func (s *Store) RecentFills(ctx context.Context, limit int) ([]Fill, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.batch_id, b.settled_at, e.item_type, e.token, e.identifier,
		        e.amount, e.recipient, e.offerer
		 FROM executions e JOIN batches b ON b.id = e.batch_id
		 ORDER BY b.settled_at DESC, e.execution_index ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent fills: %w", err)
	}
	defer rows.Close()

	var fills []Fill
	for rows.Next() {
		var f Fill
		var settledAt int64
		if err := rows.Scan(&f.BatchID, &settledAt, &f.ItemType, &f.Token,
			&f.Identifier, &f.Amount, &f.Recipient, &f.Offerer); err != nil {
			return nil, fmt.Errorf("scan fill: %w", err)
		}
		f.SettledAt = time.Unix(settledAt, 0).UTC()
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

// FillsForOrder returns the executions of every batch that touched the order.
func (s *Store) FillsForOrder(ctx context.Context, orderHash common.Hash) ([]Fill, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.batch_id, b.settled_at, e.item_type, e.token, e.identifier,
		        e.amount, e.recipient, e.offerer
		 FROM batch_orders bo
		 JOIN executions e ON e.batch_id = bo.batch_id
		 JOIN batches b ON b.id = bo.batch_id
		 WHERE bo.order_hash = ?
		 ORDER BY b.settled_at ASC, e.execution_index ASC`, orderHash.Hex())
	if err != nil {
		return nil, fmt.Errorf("query fills for order: %w", err)
	}
	defer rows.Close()

	var fills []Fill
	for rows.Next() {
		var f Fill
		var settledAt int64
		if err := rows.Scan(&f.BatchID, &settledAt, &f.ItemType, &f.Token,
			&f.Identifier, &f.Amount, &f.Recipient, &f.Offerer); err != nil {
			return nil, fmt.Errorf("scan fill: %w", err)
		}
		f.SettledAt = time.Unix(settledAt, 0).UTC()
		fills = append(fills, f)
	}
	return fills, rows.Err()
}
