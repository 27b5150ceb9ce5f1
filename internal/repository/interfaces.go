package repository

import "time"

// Repository interface defines all repository operations.
type Repository interface {
	// Ping checks database connectivity
	Ping() error

	// Events returns the processed-event ledger repository
	Events() EventLedgerRepository

	// State returns the key-value state repository
	State() StateRepository
}

// EventLedgerRepository is the durable processed-event ledger used for
// deduplication. Rows carry an expiry so the ledger stays bounded.
type EventLedgerRepository interface {
	// FilterProcessed returns the subset of ids already recorded (and not
	// yet expired).
	FilterProcessed(ids []string) (map[string]bool, error)

	// MarkProcessed records ids with the given expiry. Already-recorded ids
	// are left untouched.
	MarkProcessed(ids []string, expiresAt time.Time) error

	// DeleteExpired removes rows whose expiry is before the given time and
	// returns how many were deleted.
	DeleteExpired(before time.Time) (int64, error)
}

// StateRepository is durable key-value state (poller cursor, last-ack
// snapshot). Get returns nil with no error when the key is absent.
type StateRepository interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
}
