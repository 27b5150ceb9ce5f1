package service

import (
	"context"

	"github.com/coreflowhq/wabroker/internal/broker"
	"github.com/coreflowhq/wabroker/internal/models"
)

// Gateway is the full broker client surface the services depend on. Both
// *broker.Client and broker.Disabled satisfy it.
type Gateway interface {
	ConnectSession(ctx context.Context, sessionID string) (*models.SessionStatus, error)
	LogoutSession(ctx context.Context, sessionID string) error
	GetSessionStatus(ctx context.Context, sessionID string) (*models.SessionStatus, error)
	GetQRCode(ctx context.Context, sessionID string) (*models.QRCode, error)
	SendMessage(ctx context.Context, sessionID string, input models.SendMessageInput) (*models.SendResult, error)
	CreatePoll(ctx context.Context, sessionID string, input models.CreatePollInput) (*models.PollCreateResult, error)
	FetchEvents(ctx context.Context, cursor string, limit int) (*broker.EventPage, error)
	AckEvents(ctx context.Context, ids []string) error
	ListInstances(ctx context.Context) ([]models.Instance, error)
	CreateInstance(ctx context.Context, tenantID, name string) (*models.Instance, error)
	DeleteInstance(ctx context.Context, instanceID string) error
}

type SessionService interface {
	Connect(ctx context.Context, sessionID string) (*models.SessionStatus, error)
	Logout(ctx context.Context, sessionID string) error
	Status(ctx context.Context, sessionID string) (*models.SessionStatus, error)
	QRCode(ctx context.Context, sessionID string) (*models.QRCode, error)
	SendMessage(ctx context.Context, sessionID string, input models.SendMessageInput) (*models.SendResult, error)
	CreatePoll(ctx context.Context, sessionID string, input models.CreatePollInput) (*models.PollCreateResult, error)
	ListInstances(ctx context.Context) ([]models.Instance, error)
	CreateInstance(ctx context.Context, tenantID, name string) (*models.Instance, error)
	DeleteInstance(ctx context.Context, instanceID string) error
	BreakerStatus() (state BreakerState, requests uint32, failures uint32)
}

type PollerService interface {
	Start() error
	Stop() error
	IsRunning() bool
}

type HealthService interface {
	GetHealth() *HealthStatus
}
