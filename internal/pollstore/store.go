// Package pollstore holds ephemeral per-poll state: question and options,
// the encrypted message secret, receipt hints and vote selections. Records
// are TTL-bounded in memory with debounced best-effort persistence, so they
// survive restarts approximately but never block request handling.
package pollstore

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/coreflowhq/wabroker/internal/models"
)

const (
	defaultTTL      = 6 * time.Hour
	defaultDebounce = 2 * time.Second
	flushTimeout    = 5 * time.Second
	snapshotVersion = 1
)

// Config holds the store's timing knobs.
type Config struct {
	TTL           time.Duration
	FlushDebounce time.Duration
}

// PollCreationInput carries everything known about a poll at creation (or
// merge) time. Zero-valued fields leave the existing record untouched.
type PollCreationInput struct {
	PollID            string
	Question          string
	Options           []models.PollOption
	SelectableCount   int
	CreationMessageID string
	TenantID          string
	InstanceID        string
	MessageSecret     []byte
	CreatorJID        string
	ExpiresAt         time.Time
}

type snapshot struct {
	Version int                            `json:"version"`
	Polls   map[string]*models.PollMetadata `json:"polls"`
}

// Store is the in-memory poll cache. One instance is constructed at process
// start and shared by the event consumer and the request handlers.
type Store struct {
	snapshots SnapshotStore
	cipher    *SecretCipher
	logger    *zap.Logger
	ttl       time.Duration
	debounce  time.Duration
	now       func() time.Time

	initOnce sync.Once

	mu         sync.Mutex
	records    map[string]*models.PollMetadata
	byCreation map[string]string
	dirty      bool
	flushTimer *time.Timer
}

// NewStore creates a poll store. The cipher may not be nil; construction of
// the cipher itself fails earlier when no passphrase is configured.
func NewStore(snapshots SnapshotStore, cipher *SecretCipher, cfg Config, logger *zap.Logger) *Store {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	debounce := cfg.FlushDebounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	return &Store{
		snapshots:  snapshots,
		cipher:     cipher,
		logger:     logger,
		ttl:        ttl,
		debounce:   debounce,
		now:        time.Now,
		records:    make(map[string]*models.PollMetadata),
		byCreation: make(map[string]string),
	}
}

// ensureLoaded performs the one-time load from durable storage followed by an
// expiry sweep. Concurrent callers all wait on the same initialization.
func (s *Store) ensureLoaded(ctx context.Context) {
	s.initOnce.Do(func() {
		data, err := s.snapshots.Load(ctx)
		if err != nil {
			s.logger.Warn("Failed to load poll snapshot, starting empty", zap.Error(err))
			return
		}
		if len(data) == 0 {
			return
		}

		var snap snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			s.logger.Warn("Failed to decode poll snapshot, starting empty", zap.Error(err))
			return
		}

		now := s.now()
		s.mu.Lock()
		defer s.mu.Unlock()
		for pollID, rec := range snap.Polls {
			if rec == nil || !rec.ExpiresAt.After(now) {
				continue
			}
			if rec.Votes == nil {
				rec.Votes = make(map[string]models.VoteSelection)
			}
			s.records[pollID] = rec
			if rec.CreationMessageID != "" {
				s.byCreation[rec.CreationMessageID] = pollID
			}
		}
		s.logger.Info("Poll snapshot loaded", zap.Int("polls", len(s.records)))
	})
}

// RememberPollCreation upserts a record by poll id. Option lists merge by id
// with the incoming option winning on conflict; the secret's envelope and
// fingerprint are recomputed only when a secret is supplied.
func (s *Store) RememberPollCreation(ctx context.Context, input PollCreationInput) error {
	if input.PollID == "" {
		return errors.New("poll id is required")
	}
	s.ensureLoaded(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, ok := s.records[input.PollID]
	if !ok || !rec.ExpiresAt.After(now) {
		rec = &models.PollMetadata{
			PollID:    input.PollID,
			CreatedAt: now,
			Votes:     make(map[string]models.VoteSelection),
		}
		s.records[input.PollID] = rec
	}

	s.applyMetadataLocked(rec, input)

	if len(input.MessageSecret) > 0 {
		env, err := s.cipher.Encrypt(input.MessageSecret)
		if err != nil {
			s.logger.Error("Failed to encrypt poll secret", zap.String("poll_id", input.PollID), zap.Error(err))
		} else {
			rec.Secret = env
			rec.SecretFingerprint = s.cipher.Fingerprint(input.MessageSecret)
		}
	}

	if !input.ExpiresAt.IsZero() {
		rec.ExpiresAt = input.ExpiresAt
	} else {
		rec.ExpiresAt = now.Add(s.ttl)
	}
	rec.UpdatedAt = now

	s.scheduleFlushLocked()
	return nil
}

// MergeMetadata reconciles externally-sourced metadata into the in-memory
// record, creating it when absent. Unlike RememberPollCreation it does not
// reset the expiry of an existing record.
func (s *Store) MergeMetadata(ctx context.Context, input PollCreationInput) error {
	if input.PollID == "" {
		return errors.New("poll id is required")
	}
	s.ensureLoaded(ctx)

	s.mu.Lock()
	rec, ok := s.records[input.PollID]
	if !ok || !rec.ExpiresAt.After(s.now()) {
		s.mu.Unlock()
		return s.RememberPollCreation(ctx, input)
	}

	s.applyMetadataLocked(rec, input)
	rec.UpdatedAt = s.now()
	s.scheduleFlushLocked()
	s.mu.Unlock()
	return nil
}

// applyMetadataLocked merges the non-zero fields of input into rec.
func (s *Store) applyMetadataLocked(rec *models.PollMetadata, input PollCreationInput) {
	if input.Question != "" {
		rec.Question = input.Question
	}
	rec.Options = mergeOptions(rec.Options, input.Options)
	if input.SelectableCount > 0 {
		rec.SelectableCount = input.SelectableCount
		rec.MultiAnswer = input.SelectableCount > 1
	}
	if input.CreationMessageID != "" {
		rec.CreationMessageID = input.CreationMessageID
		s.byCreation[input.CreationMessageID] = rec.PollID
	}
	if input.TenantID != "" {
		rec.TenantID = input.TenantID
	}
	if input.InstanceID != "" {
		rec.InstanceID = input.InstanceID
	}
	if input.CreatorJID != "" {
		rec.CreatorJID = input.CreatorJID
		rec.ReceiptHints = appendHint(rec.ReceiptHints, input.CreatorJID)
	}
}

// RegisterReceiptHint adds a JID to the record's receipt-hint set. Hints are
// best-effort correlation aids, so an unknown poll is a no-op.
func (s *Store) RegisterReceiptHint(ctx context.Context, pollID, jid string) {
	if pollID == "" || jid == "" {
		return
	}
	s.ensureLoaded(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[pollID]
	if !ok || !rec.ExpiresAt.After(s.now()) {
		return
	}

	before := len(rec.ReceiptHints)
	rec.ReceiptHints = appendHint(rec.ReceiptHints, jid)
	if len(rec.ReceiptHints) != before {
		rec.UpdatedAt = s.now()
		s.scheduleFlushLocked()
	}
}

// RecordVoteSelection upserts one vote per voter, last write wins.
func (s *Store) RecordVoteSelection(ctx context.Context, pollID, voterJID string, optionIDs []string, selected []models.PollOption) {
	if pollID == "" || voterJID == "" {
		return
	}
	s.ensureLoaded(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[pollID]
	if !ok || !rec.ExpiresAt.After(s.now()) {
		s.logger.Debug("Vote for unknown poll ignored", zap.String("poll_id", pollID))
		return
	}

	rec.Votes[voterJID] = models.VoteSelection{
		VoterJID:  voterJID,
		OptionIDs: dedupStrings(optionIDs),
		Options:   append([]models.PollOption(nil), selected...),
		UpdatedAt: s.now(),
	}
	rec.UpdatedAt = s.now()
	s.scheduleFlushLocked()
}

// GetPollMetadata returns a deep copy of the record, or nil when it is
// unknown or expired.
func (s *Store) GetPollMetadata(ctx context.Context, pollID string) *models.PollMetadata {
	s.ensureLoaded(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[pollID]
	if !ok || !rec.ExpiresAt.After(s.now()) {
		return nil
	}
	return clonePoll(rec)
}

// GetPollMetadataByCreationID resolves a poll through its creation message.
func (s *Store) GetPollMetadataByCreationID(ctx context.Context, messageID string) *models.PollMetadata {
	s.ensureLoaded(ctx)

	s.mu.Lock()
	pollID, ok := s.byCreation[messageID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.GetPollMetadata(ctx, pollID)
}

// GetVoteSelection returns a copy of one voter's most recent vote, or nil.
func (s *Store) GetVoteSelection(ctx context.Context, pollID, voterJID string) *models.VoteSelection {
	s.ensureLoaded(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[pollID]
	if !ok || !rec.ExpiresAt.After(s.now()) {
		return nil
	}
	vote, ok := rec.Votes[voterJID]
	if !ok {
		return nil
	}

	cloned := vote
	cloned.OptionIDs = append([]string(nil), vote.OptionIDs...)
	cloned.Options = append([]models.PollOption(nil), vote.Options...)
	return &cloned
}

// GetDecryptedSecret decrypts the stored envelope on demand. Absence and
// decryption failure (wrong key after rotation) both return nil; callers
// never see an error from here.
func (s *Store) GetDecryptedSecret(ctx context.Context, pollID string) []byte {
	s.ensureLoaded(ctx)

	s.mu.Lock()
	rec, ok := s.records[pollID]
	var env *models.SecretEnvelope
	if ok && rec.ExpiresAt.After(s.now()) && rec.Secret != nil {
		cloned := *rec.Secret
		env = &cloned
	}
	s.mu.Unlock()

	if env == nil {
		return nil
	}

	secret, err := s.cipher.Decrypt(env)
	if err != nil {
		s.logger.Warn("Failed to decrypt poll secret", zap.String("poll_id", pollID), zap.Error(err))
		return nil
	}
	return secret
}

// Flush forces a synchronous snapshot write, used at shutdown.
func (s *Store) Flush() {
	s.flush()
}

// scheduleFlushLocked arms (or re-arms) the debounced snapshot write.
// The caller holds the mutex.
func (s *Store) scheduleFlushLocked() {
	s.dirty = true
	if s.flushTimer != nil {
		s.flushTimer.Reset(s.debounce)
		return
	}
	s.flushTimer = time.AfterFunc(s.debounce, s.flush)
}

// flush writes the full in-memory snapshot. The dirty flag is cleared before
// the write so a mutation arriving mid-write re-arms the next flush instead
// of being lost.
func (s *Store) flush() {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return
	}
	s.dirty = false
	data, err := json.Marshal(snapshot{Version: snapshotVersion, Polls: s.records})
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Failed to encode poll snapshot", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := s.snapshots.Save(ctx, data); err != nil {
		s.logger.Warn("Failed to persist poll snapshot", zap.Error(err))
	}
}

// mergeOptions unions two option lists by id, incoming wins on conflict,
// ordered by index then id.
func mergeOptions(existing, incoming []models.PollOption) []models.PollOption {
	if len(incoming) == 0 {
		return existing
	}

	byID := make(map[string]models.PollOption, len(existing)+len(incoming))
	for _, opt := range existing {
		byID[opt.ID] = opt
	}
	for _, opt := range incoming {
		byID[opt.ID] = opt
	}

	merged := make([]models.PollOption, 0, len(byID))
	for _, opt := range byID {
		merged = append(merged, opt)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Index != merged[j].Index {
			return merged[i].Index < merged[j].Index
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}

func appendHint(hints []string, jid string) []string {
	for _, h := range hints {
		if h == jid {
			return hints
		}
	}
	return append(hints, jid)
}

func dedupStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func clonePoll(rec *models.PollMetadata) *models.PollMetadata {
	cloned := *rec
	cloned.Options = append([]models.PollOption(nil), rec.Options...)
	cloned.ReceiptHints = append([]string(nil), rec.ReceiptHints...)
	if rec.Secret != nil {
		env := *rec.Secret
		cloned.Secret = &env
	}
	cloned.Votes = make(map[string]models.VoteSelection, len(rec.Votes))
	for voter, vote := range rec.Votes {
		v := vote
		v.OptionIDs = append([]string(nil), vote.OptionIDs...)
		v.Options = append([]models.PollOption(nil), vote.Options...)
		cloned.Votes[voter] = v
	}
	return &cloned
}
