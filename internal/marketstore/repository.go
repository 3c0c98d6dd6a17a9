// Package marketstore is the durable cache tier: raw upstream payloads
// keyed by (symbol, class, params) in SQLite, with retention cleanup.
package marketstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/AhmedIkram05/StockLens-sub001/internal/marketdata"
)

const schema = `
CREATE TABLE IF NOT EXISTS market_data (
	symbol     TEXT NOT NULL,
	class      TEXT NOT NULL,
	params     TEXT NOT NULL DEFAULT '',
	data       TEXT NOT NULL,
	fetched_at INTEGER NOT NULL,
	PRIMARY KEY (symbol, class, params)
);

CREATE INDEX IF NOT EXISTS idx_market_data_fetched_at ON market_data(class, fetched_at);
`

// Repository persists raw market data payloads. Rows are upserted per key,
// so there is never more than one row for a (symbol, class, params) triple.
// Implements marketdata.Store.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a market data repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the schema if needed. Idempotent.
func (r *Repository) Migrate() error {
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate market_data schema: %w", err)
	}
	return nil
}

// Get loads the stored record for a key. The second return value reports
// whether a record exists; its age is the caller's concern.
func (r *Repository) Get(key marketdata.Key) (marketdata.Record, bool, error) {
	var (
		payload   string
		fetchedAt int64
	)

	err := r.db.QueryRow(
		`SELECT data, fetched_at FROM market_data WHERE symbol = ? AND class = ? AND params = ?`,
		key.Symbol, string(key.Class), key.Params,
	).Scan(&payload, &fetchedAt)
	if err == sql.ErrNoRows {
		return marketdata.Record{}, false, nil
	}
	if err != nil {
		return marketdata.Record{}, false, fmt.Errorf("failed to read market data for %s: %w", key.String(), err)
	}

	return marketdata.Record{
		Key:       key,
		Payload:   []byte(payload),
		FetchedAt: time.Unix(fetchedAt, 0).UTC(),
	}, true, nil
}

// Put stores a record, replacing any previous row for the same key.
func (r *Repository) Put(rec marketdata.Record) error {
	_, err := r.db.Exec(
		`INSERT OR REPLACE INTO market_data (symbol, class, params, data, fetched_at) VALUES (?, ?, ?, ?, ?)`,
		rec.Key.Symbol, string(rec.Key.Class), rec.Key.Params, string(rec.Payload), rec.FetchedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to write market data for %s: %w", rec.Key.String(), err)
	}
	return nil
}

// Delete removes the row for a key, if any.
func (r *Repository) Delete(key marketdata.Key) error {
	_, err := r.db.Exec(
		`DELETE FROM market_data WHERE symbol = ? AND class = ? AND params = ?`,
		key.Symbol, string(key.Class), key.Params,
	)
	if err != nil {
		return fmt.Errorf("failed to delete market data for %s: %w", key.String(), err)
	}
	return nil
}

// DeleteStale removes rows of a class fetched before the cutoff and returns
// how many were removed. Retention cutoffs are far beyond the freshness
// TTLs: merely stale rows stay, since they back stale-while-revalidate
// serving.
func (r *Repository) DeleteStale(class marketdata.DataClass, olderThan time.Time) (int64, error) {
	result, err := r.db.Exec(
		`DELETE FROM market_data WHERE class = ? AND fetched_at < ?`,
		string(class), olderThan.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale %s rows: %w", class, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return rows, nil
}

// Stats returns the row count per data class.
func (r *Repository) Stats() (map[string]int64, error) {
	rows, err := r.db.Query(`SELECT class, COUNT(*) FROM market_data GROUP BY class`)
	if err != nil {
		return nil, fmt.Errorf("failed to count market data rows: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int64)
	for rows.Next() {
		var (
			class string
			count int64
		)
		if err := rows.Scan(&class, &count); err != nil {
			return nil, fmt.Errorf("failed to scan market data stats: %w", err)
		}
		stats[class] = count
	}
	return stats, rows.Err()
}
