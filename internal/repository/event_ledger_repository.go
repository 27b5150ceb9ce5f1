package repository

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type eventLedgerRepository struct {
	db *sqlx.DB
}

func NewEventLedgerRepository(db *sqlx.DB) EventLedgerRepository {
	return &eventLedgerRepository{
		db: db,
	}
}

// FilterProcessed returns which of the given ids are already in the ledger.
// Expired rows are treated as absent even before housekeeping removes them.
func (r *eventLedgerRepository) FilterProcessed(ids []string) (map[string]bool, error) {
	processed := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return processed, nil
	}

	query, args, err := sqlx.In(`
		SELECT event_id
		FROM processed_events
		WHERE event_id IN (?) AND expires_at > ?
	`, ids, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to build ledger query: %w", err)
	}
	query = r.db.Rebind(query)

	var found []string
	if err := r.db.Select(&found, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query processed events: %w", err)
	}

	for _, id := range found {
		processed[id] = true
	}
	return processed, nil
}

// MarkProcessed inserts ledger rows for the given ids. Conflicting ids keep
// their original row so a re-delivered event cannot extend its own expiry.
func (r *eventLedgerRepository) MarkProcessed(ids []string, expiresAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		INSERT INTO processed_events (event_id, processed_at, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING
	`

	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	now := time.Now()
	for _, id := range ids {
		if _, err := tx.Exec(query, id, now, expiresAt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to mark event %s processed: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger insert: %w", err)
	}
	return nil
}

// DeleteExpired removes ledger rows past their expiry.
func (r *eventLedgerRepository) DeleteExpired(before time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM processed_events WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired events: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted events: %w", err)
	}
	return deleted, nil
}
