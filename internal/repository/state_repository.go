package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type stateRepository struct {
	db *sqlx.DB
}

func NewStateRepository(db *sqlx.DB) StateRepository {
	return &stateRepository{
		db: db,
	}
}

// Get returns the stored value for key, or nil when the key is absent.
func (r *stateRepository) Get(key string) ([]byte, error) {
	var value []byte
	err := r.db.Get(&value, `SELECT value FROM poller_state WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get state %s: %w", key, err)
	}
	return value, nil
}

// Put upserts the value for key.
func (r *stateRepository) Put(key string, value []byte) error {
	query := `
		INSERT INTO poller_state (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.Exec(query, key, value, time.Now()); err != nil {
		return fmt.Errorf("failed to put state %s: %w", key, err)
	}
	return nil
}
