package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/coreflowhq/wabroker/internal/config"
	"github.com/coreflowhq/wabroker/internal/poller"
	"github.com/coreflowhq/wabroker/internal/queue"
	"github.com/coreflowhq/wabroker/internal/repository"
)

type pollerService struct {
	poller *poller.Poller
	logger *zap.Logger
}

func NewPollerService(
	cfg *config.Config,
	gateway Gateway,
	repo repository.Repository,
	q queue.Queue,
	logger *zap.Logger,
) PollerService {
	return &pollerService{
		poller: poller.NewPoller(gateway, repo, q, poller.ConfigFromApp(cfg.Poller), logger),
		logger: logger,
	}
}

func (s *pollerService) Start() error {
	return s.poller.Start(context.Background())
}

func (s *pollerService) Stop() error {
	return s.poller.Stop()
}

func (s *pollerService) IsRunning() bool {
	return s.poller.IsRunning()
}
