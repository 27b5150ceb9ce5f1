// Package poller implements the broker event ingestion loop: fetch since the
// persisted cursor, deduplicate against the processed-event ledger, hand off
// downstream, acknowledge, then advance the cursor.
package poller

import "errors"

var (
	ErrPollerAlreadyRunning = errors.New("poller is already running")
	ErrPollerNotRunning     = errors.New("poller is not running")
)
