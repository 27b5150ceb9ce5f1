package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/coreflowhq/wabroker/internal/broker"
	"github.com/coreflowhq/wabroker/internal/config"
	"github.com/coreflowhq/wabroker/internal/models"
	"github.com/coreflowhq/wabroker/internal/payload"
	"github.com/coreflowhq/wabroker/internal/queue"
	"github.com/coreflowhq/wabroker/internal/repository"
)

// State keys in the durable key-value store.
const (
	StateKeyCursor  = "poller:cursor"
	StateKeyLastAck = "poller:last_ack"
)

// Gateway is the slice of the broker client the poller needs.
type Gateway interface {
	FetchEvents(ctx context.Context, cursor string, limit int) (*broker.EventPage, error)
	AckEvents(ctx context.Context, ids []string) error
}

// Config holds the poller's timing and sizing knobs.
type Config struct {
	BatchSize            int
	IdleDelay            time.Duration
	ProcessDelay         time.Duration
	BackoffMin           time.Duration
	BackoffMax           time.Duration
	NotConfiguredBackoff time.Duration
	LedgerTTL            time.Duration
	CleanupInterval      time.Duration
}

// ConfigFromApp converts the application config into poller durations,
// filling defaults for anything unset.
func ConfigFromApp(cfg config.PollerConfig) Config {
	c := Config{
		BatchSize:            cfg.BatchSize,
		IdleDelay:            time.Duration(cfg.IdleDelaySeconds) * time.Second,
		ProcessDelay:         time.Duration(cfg.ProcessDelayMs) * time.Millisecond,
		BackoffMin:           time.Duration(cfg.BackoffMinSeconds) * time.Second,
		BackoffMax:           time.Duration(cfg.BackoffMaxSeconds) * time.Second,
		NotConfiguredBackoff: time.Duration(cfg.NotConfiguredBackoffSeconds) * time.Second,
		LedgerTTL:            time.Duration(cfg.LedgerTTLHours) * time.Hour,
		CleanupInterval:      time.Duration(cfg.CleanupIntervalMinutes) * time.Minute,
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.IdleDelay <= 0 {
		c.IdleDelay = 5 * time.Second
	}
	if c.ProcessDelay <= 0 {
		c.ProcessDelay = 200 * time.Millisecond
	}
	if c.BackoffMin <= 0 {
		c.BackoffMin = time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = time.Minute
	}
	if c.NotConfiguredBackoff <= 0 {
		c.NotConfiguredBackoff = 5 * time.Minute
	}
	if c.LedgerTTL <= 0 {
		c.LedgerTTL = 7 * 24 * time.Hour
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Hour
	}
	return c
}

// Poller drains the broker event feed into the downstream queue. One poller
// runs per process; running more than one against the same cursor key would
// cause competing acknowledgment.
type Poller struct {
	gateway Gateway
	repo    repository.Repository
	queue   queue.Queue
	logger  *zap.Logger
	cfg     Config

	stopCh    chan struct{}
	doneCh    chan struct{}
	isRunning bool
	mu        sync.RWMutex

	cursor   string
	failures int
}

// NewPoller creates a poller instance.
func NewPoller(gateway Gateway, repo repository.Repository, q queue.Queue, cfg Config, logger *zap.Logger) *Poller {
	return &Poller{
		gateway: gateway,
		repo:    repo,
		queue:   q,
		logger:  logger,
		cfg:     cfg,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start resumes from the persisted cursor and begins the loop.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return ErrPollerAlreadyRunning
	}

	cursor, err := p.repo.State().Get(StateKeyCursor)
	if err != nil {
		p.logger.Warn("Failed to load poller cursor, starting from beginning", zap.Error(err))
	} else {
		p.cursor = string(cursor)
	}

	p.isRunning = true
	p.failures = 0
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	go p.run(ctx)

	p.logger.Info("Poller started", zap.String("cursor", p.cursor))
	return nil
}

// Stop halts the loop. The in-flight cycle is drained as one unit; a
// partially-acknowledged batch is never abandoned mid-way.
func (p *Poller) Stop() error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return ErrPollerNotRunning
	}
	p.mu.Unlock()

	close(p.stopCh)
	<-p.doneCh

	p.mu.Lock()
	p.isRunning = false
	p.mu.Unlock()

	p.logger.Info("Poller stopped")
	return nil
}

// IsRunning returns whether the poller loop is active.
func (p *Poller) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isRunning
}

// Cursor returns the current in-memory cursor.
func (p *Poller) Cursor() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cursor
}

// run executes the poll loop until stopped or the context is canceled.
func (p *Poller) run(ctx context.Context) {
	defer close(p.doneCh)
	defer func() {
		p.mu.Lock()
		p.isRunning = false
		p.mu.Unlock()
	}()

	hkDone := make(chan struct{})
	go func() {
		defer close(hkDone)
		p.housekeeping(ctx)
	}()
	defer func() { <-hkDone }()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Poller context canceled")
			return
		case <-p.stopCh:
			p.logger.Info("Poller stop signal received")
			return
		default:
		}

		processed, err := p.RunCycle(ctx)
		if err != nil {
			p.logger.Error("Poll cycle failed",
				zap.Int("consecutive_failures", p.failures+1),
				zap.Error(err))
		}

		delay := p.nextDelay(processed, err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("Poller context canceled")
			return
		case <-p.stopCh:
			timer.Stop()
			p.logger.Info("Poller stop signal received")
			return
		case <-timer.C:
		}
	}
}

// RunCycle performs one fetch/dedupe/enqueue/ack/persist pass and returns the
// number of events handed downstream. The ordering inside is load-bearing:
// ledger insert happens before hand-off, hand-off before ack, ack before
// cursor advancement.
func (p *Poller) RunCycle(ctx context.Context) (int, error) {
	page, err := p.gateway.FetchEvents(ctx, p.Cursor(), p.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch events: %w", err)
	}
	if len(page.Items) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(page.Items))
	acks := make([]string, 0, len(page.Items))
	raws := make([]map[string]any, 0, len(page.Items))
	for _, item := range page.Items {
		id := payload.FirstString(item, "id", "eventId", "event_id")
		if id == "" {
			p.logger.Warn("Dropping broker event without id")
			continue
		}
		ids = append(ids, id)
		raws = append(raws, item)
		if token := payload.FirstString(item, "ackToken", "ack_token"); token != "" {
			acks = append(acks, token)
		} else {
			acks = append(acks, id)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	alreadyProcessed, err := p.repo.Events().FilterProcessed(ids)
	if err != nil {
		return 0, fmt.Errorf("failed to query ledger: %w", err)
	}

	var fresh []models.BrokerEvent
	var freshIDs []string
	for i, raw := range raws {
		if alreadyProcessed[ids[i]] {
			continue
		}
		fresh = append(fresh, normalizeEvent(ids[i], raw))
		freshIDs = append(freshIDs, ids[i])
	}

	if len(freshIDs) > 0 {
		if err := p.repo.Events().MarkProcessed(freshIDs, time.Now().Add(p.cfg.LedgerTTL)); err != nil {
			return 0, fmt.Errorf("failed to record ledger rows: %w", err)
		}
		if err := p.queue.Enqueue(ctx, fresh); err != nil {
			return 0, fmt.Errorf("failed to enqueue events: %w", err)
		}
	}

	if err := p.gateway.AckEvents(ctx, acks); err != nil {
		return 0, fmt.Errorf("failed to ack events: %w", err)
	}

	if page.NextCursor != "" {
		p.mu.Lock()
		p.cursor = page.NextCursor
		p.mu.Unlock()
	}
	if err := p.persistState(len(acks)); err != nil {
		return 0, fmt.Errorf("failed to persist poller state: %w", err)
	}

	p.logger.Info("Poll cycle completed",
		zap.Int("fetched", len(page.Items)),
		zap.Int("fresh", len(fresh)),
		zap.Int("acked", len(acks)),
		zap.String("cursor", page.NextCursor))
	return len(fresh), nil
}

func (p *Poller) persistState(ackCount int) error {
	cursor := p.Cursor()

	if err := p.repo.State().Put(StateKeyCursor, []byte(cursor)); err != nil {
		return err
	}

	snapshot, err := json.Marshal(models.AckState{
		Timestamp: time.Now(),
		Cursor:    cursor,
		Count:     ackCount,
	})
	if err != nil {
		return err
	}
	return p.repo.State().Put(StateKeyLastAck, snapshot)
}

// nextDelay implements the idle/processing/backoff schedule. Consecutive
// failures double the delay up to the cap; a not-configured gateway gets a
// long fixed backoff since retrying sooner cannot help.
func (p *Poller) nextDelay(processed int, err error) time.Duration {
	if err != nil {
		p.failures++
		if errors.Is(err, broker.ErrNotConfigured) {
			return p.cfg.NotConfiguredBackoff
		}
		backoff := p.cfg.BackoffMin
		for i := 1; i < p.failures; i++ {
			backoff *= 2
			if backoff >= p.cfg.BackoffMax {
				return p.cfg.BackoffMax
			}
		}
		return backoff
	}

	p.failures = 0
	if processed > 0 {
		return p.cfg.ProcessDelay
	}
	return p.cfg.IdleDelay
}

// housekeeping periodically prunes expired ledger rows.
func (p *Poller) housekeeping(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			deleted, err := p.repo.Events().DeleteExpired(time.Now())
			if err != nil {
				p.logger.Warn("Ledger cleanup failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				p.logger.Info("Ledger cleanup completed", zap.Int64("deleted", deleted))
			}
		}
	}
}
