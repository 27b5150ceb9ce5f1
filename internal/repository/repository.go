// Package repository provides Postgres-backed persistence for the poller's
// processed-event ledger and key-value state.
package repository

import (
	"github.com/jmoiron/sqlx"
)

type repository struct {
	db     *sqlx.DB
	events EventLedgerRepository
	state  StateRepository
}

// NewRepository creates a repository backed by the given database.
func NewRepository(db *sqlx.DB) Repository {
	return &repository{
		db:     db,
		events: NewEventLedgerRepository(db),
		state:  NewStateRepository(db),
	}
}

func (r *repository) Ping() error {
	return r.db.Ping()
}

func (r *repository) Events() EventLedgerRepository {
	return r.events
}

func (r *repository) State() StateRepository {
	return r.state
}
