package poller

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coreflowhq/wabroker/internal/broker"
)

func TestNextDelay(t *testing.T) {
	cfg := Config{
		IdleDelay:            5 * time.Second,
		ProcessDelay:         200 * time.Millisecond,
		BackoffMin:           time.Second,
		BackoffMax:           time.Minute,
		NotConfiguredBackoff: 5 * time.Minute,
	}
	p := &Poller{cfg: cfg}

	assert.Equal(t, cfg.IdleDelay, p.nextDelay(0, nil))
	assert.Equal(t, cfg.ProcessDelay, p.nextDelay(10, nil))

	failure := errors.New("fetch failed")
	assert.Equal(t, 1*time.Second, p.nextDelay(0, failure))
	assert.Equal(t, 2*time.Second, p.nextDelay(0, failure))
	assert.Equal(t, 4*time.Second, p.nextDelay(0, failure))
	assert.Equal(t, 8*time.Second, p.nextDelay(0, failure))

	// A success resets the failure streak.
	assert.Equal(t, cfg.IdleDelay, p.nextDelay(0, nil))
	assert.Equal(t, 1*time.Second, p.nextDelay(0, failure))
}

func TestNextDelay_Cap(t *testing.T) {
	p := &Poller{cfg: Config{
		BackoffMin: time.Second,
		BackoffMax: 8 * time.Second,
	}}

	failure := errors.New("fetch failed")
	for i := 0; i < 10; i++ {
		_ = p.nextDelay(0, failure)
	}
	assert.Equal(t, 8*time.Second, p.nextDelay(0, failure))
}

func TestNextDelay_NotConfigured(t *testing.T) {
	p := &Poller{cfg: Config{
		BackoffMin:           time.Second,
		BackoffMax:           time.Minute,
		NotConfiguredBackoff: 5 * time.Minute,
	}}

	err := fmt.Errorf("failed to fetch events: %w", broker.ErrNotConfigured)
	assert.Equal(t, 5*time.Minute, p.nextDelay(0, err))
	// Fixed, never doubled.
	assert.Equal(t, 5*time.Minute, p.nextDelay(0, err))
}
