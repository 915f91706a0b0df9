package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"superpose/internal/variant"
)

// SQLite is the durable ledger backend. Batches are stored whole as JSON
// with a membership table for variant lookups; rows are inserted once and
// never updated.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed creates) a ledger database at path. Use
// ":memory:" for an ephemeral database.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	l := &SQLite{db: db}
	if err := l.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure ledger schema: %w", err)
	}
	return l, nil
}

// Close releases the database handle.
func (l *SQLite) Close() error {
	return l.db.Close()
}

func (l *SQLite) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS execution_batches (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		completed_at INTEGER NOT NULL,
		status TEXT NOT NULL,
		batch_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS batch_variants (
		batch_id TEXT NOT NULL REFERENCES execution_batches(id),
		variant_id TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_batches_started ON execution_batches(started_at);
	CREATE INDEX IF NOT EXISTS idx_batch_variants_variant ON batch_variants(variant_id);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Append inserts the batch and its membership rows in one transaction.
func (l *SQLite) Append(batch variant.ExecutionBatch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to encode batch %s: %w", batch.ID, err)
	}

	tx, err := l.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO execution_batches (id, started_at, completed_at, status, batch_json)
		 VALUES (?, ?, ?, ?, ?)`,
		batch.ID,
		batch.StartedAt.UnixNano(),
		batch.CompletedAt.UnixNano(),
		string(batch.Status),
		string(payload),
	); err != nil {
		return fmt.Errorf("failed to append batch %s: %w", batch.ID, err)
	}
	for _, id := range batch.VariantIDs {
		if _, err := tx.Exec(
			`INSERT INTO batch_variants (batch_id, variant_id) VALUES (?, ?)`,
			batch.ID, id,
		); err != nil {
			return fmt.Errorf("failed to index batch %s: %w", batch.ID, err)
		}
	}
	return tx.Commit()
}

// Query returns every stored batch containing the variant id, oldest first.
func (l *SQLite) Query(variantID string) ([]variant.ExecutionBatch, error) {
	rows, err := l.db.Query(
		`SELECT b.batch_json FROM execution_batches b
		 JOIN batch_variants v ON v.batch_id = b.id
		 WHERE v.variant_id = ?
		 ORDER BY b.started_at ASC`,
		variantID,
	)
	if err != nil {
		return nil, err
	}
	return decodeBatches(rows)
}

// QueryRange returns every batch started within [start, end], oldest first.
func (l *SQLite) QueryRange(start, end time.Time) ([]variant.ExecutionBatch, error) {
	rows, err := l.db.Query(
		`SELECT batch_json FROM execution_batches
		 WHERE started_at >= ? AND started_at <= ?
		 ORDER BY started_at ASC`,
		start.UnixNano(), end.UnixNano(),
	)
	if err != nil {
		return nil, err
	}
	return decodeBatches(rows)
}

func decodeBatches(rows *sql.Rows) ([]variant.ExecutionBatch, error) {
	defer rows.Close()
	var out []variant.ExecutionBatch
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var b variant.ExecutionBatch
		if err := json.Unmarshal([]byte(payload), &b); err != nil {
			return nil, fmt.Errorf("corrupt batch row: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
