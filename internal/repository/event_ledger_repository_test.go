package repository_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreflowhq/wabroker/internal/repository"
)

func TestEventLedgerRepository_FilterProcessed(t *testing.T) {
	cleanTables(t)
	ledger := repository.NewEventLedgerRepository(testDB)

	require.NoError(t, ledger.MarkProcessed([]string{"e1", "e2"}, time.Now().Add(time.Hour)))

	processed, err := ledger.FilterProcessed([]string{"e1", "e2", "e3"})
	require.NoError(t, err)
	assert.True(t, processed["e1"])
	assert.True(t, processed["e2"])
	assert.False(t, processed["e3"])
}

func TestEventLedgerRepository_FilterProcessed_EmptyInput(t *testing.T) {
	cleanTables(t)
	ledger := repository.NewEventLedgerRepository(testDB)

	processed, err := ledger.FilterProcessed(nil)
	require.NoError(t, err)
	assert.Empty(t, processed)
}

func TestEventLedgerRepository_ExpiredRowsAreAbsent(t *testing.T) {
	cleanTables(t)
	ledger := repository.NewEventLedgerRepository(testDB)

	require.NoError(t, ledger.MarkProcessed([]string{"stale"}, time.Now().Add(-time.Minute)))
	require.NoError(t, ledger.MarkProcessed([]string{"fresh"}, time.Now().Add(time.Hour)))

	processed, err := ledger.FilterProcessed([]string{"stale", "fresh"})
	require.NoError(t, err)
	assert.False(t, processed["stale"], "expired row must be treated as absent")
	assert.True(t, processed["fresh"])
}

func TestEventLedgerRepository_MarkProcessed_Idempotent(t *testing.T) {
	cleanTables(t)
	ledger := repository.NewEventLedgerRepository(testDB)

	require.NoError(t, ledger.MarkProcessed([]string{"e1"}, time.Now().Add(time.Hour)))

	// A redelivered event must not extend its own expiry.
	var firstExpiry time.Time
	require.NoError(t, testDB.Get(&firstExpiry, `SELECT expires_at FROM processed_events WHERE event_id = 'e1'`))

	require.NoError(t, ledger.MarkProcessed([]string{"e1"}, time.Now().Add(48*time.Hour)))

	var secondExpiry time.Time
	require.NoError(t, testDB.Get(&secondExpiry, `SELECT expires_at FROM processed_events WHERE event_id = 'e1'`))
	assert.Equal(t, firstExpiry.UTC(), secondExpiry.UTC())
}

func TestEventLedgerRepository_DeleteExpired(t *testing.T) {
	cleanTables(t)
	ledger := repository.NewEventLedgerRepository(testDB)

	require.NoError(t, ledger.MarkProcessed([]string{"old1", "old2"}, time.Now().Add(-time.Hour)))
	require.NoError(t, ledger.MarkProcessed([]string{"keep"}, time.Now().Add(time.Hour)))

	deleted, err := ledger.DeleteExpired(time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	processed, err := ledger.FilterProcessed([]string{"keep"})
	require.NoError(t, err)
	assert.True(t, processed["keep"])
}
