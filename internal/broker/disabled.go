package broker

import (
	"context"

	"github.com/coreflowhq/wabroker/internal/models"
)

// Disabled is a stand-in gateway used when the broker integration is not
// configured. Every call fails with ErrNotConfigured so callers (notably the
// poller) can distinguish "never going to work until reconfigured" from a
// transient broker failure.
type Disabled struct{}

func (Disabled) ConnectSession(context.Context, string) (*models.SessionStatus, error) {
	return nil, ErrNotConfigured
}

func (Disabled) LogoutSession(context.Context, string) error {
	return ErrNotConfigured
}

func (Disabled) GetSessionStatus(context.Context, string) (*models.SessionStatus, error) {
	return nil, ErrNotConfigured
}

func (Disabled) GetQRCode(context.Context, string) (*models.QRCode, error) {
	return nil, ErrNotConfigured
}

func (Disabled) SendMessage(context.Context, string, models.SendMessageInput) (*models.SendResult, error) {
	return nil, ErrNotConfigured
}

func (Disabled) CreatePoll(context.Context, string, models.CreatePollInput) (*models.PollCreateResult, error) {
	return nil, ErrNotConfigured
}

func (Disabled) FetchEvents(context.Context, string, int) (*EventPage, error) {
	return nil, ErrNotConfigured
}

func (Disabled) AckEvents(context.Context, []string) error {
	return ErrNotConfigured
}

func (Disabled) ListInstances(context.Context) ([]models.Instance, error) {
	return nil, ErrNotConfigured
}

func (Disabled) CreateInstance(context.Context, string, string) (*models.Instance, error) {
	return nil, ErrNotConfigured
}

func (Disabled) DeleteInstance(context.Context, string) error {
	return ErrNotConfigured
}
