package service

import (
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/coreflowhq/wabroker/internal/config"
	"github.com/coreflowhq/wabroker/internal/pollstore"
	"github.com/coreflowhq/wabroker/internal/queue"
	"github.com/coreflowhq/wabroker/internal/repository"
)

type Service struct {
	Session SessionService
	Poller  PollerService
	Health  HealthService
}

func NewService(
	cfg *config.Config,
	repo repository.Repository,
	redisClient *redis.Client,
	gateway Gateway,
	q queue.Queue,
	polls *pollstore.Store,
	logger *zap.Logger,
) *Service {
	sessionService := NewSessionService(cfg, gateway, polls, logger)
	pollerService := NewPollerService(cfg, gateway, repo, q, logger)
	healthService := NewHealthService(repo, redisClient, pollerService, sessionService)

	return &Service{
		Session: sessionService,
		Poller:  pollerService,
		Health:  healthService,
	}
}
