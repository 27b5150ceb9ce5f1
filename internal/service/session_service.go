package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"go.uber.org/zap"

	"github.com/coreflowhq/wabroker/internal/config"
	"github.com/coreflowhq/wabroker/internal/models"
	"github.com/coreflowhq/wabroker/internal/pollstore"
)

type sessionService struct {
	gateway Gateway
	polls   *pollstore.Store
	logger  *zap.Logger
	breaker *CircuitBreaker
}

func NewSessionService(
	cfg *config.Config,
	gateway Gateway,
	polls *pollstore.Store,
	logger *zap.Logger,
) SessionService {
	return &sessionService{
		gateway: gateway,
		polls:   polls,
		logger:  logger,
		breaker: NewCircuitBreaker(&cfg.Broker.CircuitBreaker, logger),
	}
}

func (s *sessionService) Connect(ctx context.Context, sessionID string) (*models.SessionStatus, error) {
	return s.gateway.ConnectSession(ctx, sessionID)
}

func (s *sessionService) Logout(ctx context.Context, sessionID string) error {
	return s.gateway.LogoutSession(ctx, sessionID)
}

func (s *sessionService) Status(ctx context.Context, sessionID string) (*models.SessionStatus, error) {
	return s.gateway.GetSessionStatus(ctx, sessionID)
}

func (s *sessionService) QRCode(ctx context.Context, sessionID string) (*models.QRCode, error) {
	return s.gateway.GetQRCode(ctx, sessionID)
}

// SendMessage sends one outbound message through the circuit breaker.
func (s *sessionService) SendMessage(ctx context.Context, sessionID string, input models.SendMessageInput) (*models.SendResult, error) {
	var result *models.SendResult
	err := s.breaker.Execute(ctx, func() error {
		var sendErr error
		result, sendErr = s.gateway.SendMessage(ctx, sessionID, input)
		return sendErr
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Message sent",
		zap.String("session_id", sessionID),
		zap.String("message_id", result.MessageID),
		zap.String("kind", string(input.Kind)))
	return result, nil
}

// CreatePoll sends a poll and remembers its metadata (including the message
// secret) in the poll store so inbound votes can be resolved later.
func (s *sessionService) CreatePoll(ctx context.Context, sessionID string, input models.CreatePollInput) (*models.PollCreateResult, error) {
	var result *models.PollCreateResult
	err := s.breaker.Execute(ctx, func() error {
		var pollErr error
		result, pollErr = s.gateway.CreatePoll(ctx, sessionID, input)
		return pollErr
	})
	if err != nil {
		return nil, err
	}

	pollID := result.PollID
	if pollID == "" {
		pollID = result.MessageID
	}
	if pollID != "" {
		rememberErr := s.polls.RememberPollCreation(ctx, pollstore.PollCreationInput{
			PollID:            pollID,
			Question:          input.Question,
			Options:           pollOptions(input.Options),
			SelectableCount:   input.SelectableCount,
			CreationMessageID: result.MessageID,
			InstanceID:        sessionID,
			MessageSecret:     result.MessageSecret,
		})
		if rememberErr != nil {
			// The poll is already sent; losing its metadata degrades vote
			// resolution but must not fail the request.
			s.logger.Warn("Failed to remember poll creation",
				zap.String("poll_id", pollID),
				zap.Error(rememberErr))
		}
	}

	s.logger.Info("Poll created",
		zap.String("session_id", sessionID),
		zap.String("poll_id", pollID),
		zap.String("message_id", result.MessageID))
	return result, nil
}

func (s *sessionService) ListInstances(ctx context.Context) ([]models.Instance, error) {
	return s.gateway.ListInstances(ctx)
}

func (s *sessionService) CreateInstance(ctx context.Context, tenantID, name string) (*models.Instance, error) {
	return s.gateway.CreateInstance(ctx, tenantID, name)
}

func (s *sessionService) DeleteInstance(ctx context.Context, instanceID string) error {
	return s.gateway.DeleteInstance(ctx, instanceID)
}

func (s *sessionService) BreakerStatus() (BreakerState, uint32, uint32) {
	requests, failures := s.breaker.GetCounts()
	return s.breaker.GetState(), requests, failures
}

// pollOptions assigns stable option ids (hash of the title) and indexes.
func pollOptions(titles []string) []models.PollOption {
	options := make([]models.PollOption, 0, len(titles))
	for i, title := range titles {
		sum := sha256.Sum256([]byte(title))
		options = append(options, models.PollOption{
			ID:    hex.EncodeToString(sum[:]),
			Title: title,
			Index: i,
		})
	}
	return options
}
