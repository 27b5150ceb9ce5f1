package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/coreflowhq/wabroker/internal/broker"
	"github.com/coreflowhq/wabroker/internal/handler"
	"github.com/coreflowhq/wabroker/internal/models"
	"github.com/coreflowhq/wabroker/internal/poller"
	"github.com/coreflowhq/wabroker/internal/service"
	"github.com/coreflowhq/wabroker/internal/service/mocks"
)

type fixture struct {
	session *mocks.MockSessionService
	poller  *mocks.MockPollerService
	health  *mocks.MockHealthService
	router  chi.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &fixture{
		session: mocks.NewMockSessionService(ctrl),
		poller:  mocks.NewMockPollerService(ctrl),
		health:  mocks.NewMockHealthService(ctrl),
	}

	h := handler.NewHandler(&service.Service{
		Session: f.session,
		Poller:  f.poller,
		Health:  f.health,
	}, zap.NewNop())

	r := chi.NewRouter()
	r.Get("/health", h.HealthCheck)
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Post("/connect", h.ConnectSession)
			r.Post("/logout", h.LogoutSession)
			r.Get("/status", h.GetSessionStatus)
			r.Get("/qr", h.GetQRCode)
			r.Post("/messages", h.SendMessage)
			r.Post("/polls", h.CreatePoll)
		})
		r.Route("/instances", func(r chi.Router) {
			r.Get("/", h.ListInstances)
			r.Post("/", h.CreateInstance)
			r.Delete("/{instanceID}", h.DeleteInstance)
		})
		r.Route("/poller", func(r chi.Router) {
			r.Post("/start", h.StartPoller)
			r.Post("/stop", h.StopPoller)
		})
	})
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHandler_HealthCheck(t *testing.T) {
	tests := []struct {
		name         string
		health       *service.HealthStatus
		expectedCode int
	}{
		{
			name:         "healthy",
			health:       &service.HealthStatus{Status: service.HealthHealthy, PollerStatus: "running"},
			expectedCode: http.StatusOK,
		},
		{
			name:         "degraded stays reachable",
			health:       &service.HealthStatus{Status: service.HealthDegraded},
			expectedCode: http.StatusOK,
		},
		{
			name:         "unhealthy",
			health:       &service.HealthStatus{Status: service.HealthUnhealthy},
			expectedCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.health.EXPECT().GetHealth().Return(tt.health)

			w := f.do(t, http.MethodGet, "/health", nil)
			assert.Equal(t, tt.expectedCode, w.Code)
			assert.Equal(t, string(tt.health.Status), decodeBody(t, w)["status"])
		})
	}
}

func TestHandler_SendMessage(t *testing.T) {
	f := newFixture(t)
	f.session.EXPECT().SendMessage(gomock.Any(), "s1", gomock.Any()).
		Return(&models.SendResult{MessageID: "m1"}, nil)

	w := f.do(t, http.MethodPost, "/api/v1/sessions/s1/messages", models.SendMessageInput{
		To:   "123@s.whatsapp.net",
		Kind: models.MessageText,
		Text: "hi",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "m1", decodeBody(t, w)["message_id"])
}

func TestHandler_SendMessage_BrokerErrorMapping(t *testing.T) {
	tests := []struct {
		name         string
		err          *broker.Error
		expectedCode int
	}{
		{"rate limited", &broker.Error{Kind: broker.KindRateLimited, Message: "slow down"}, http.StatusTooManyRequests},
		{"timeout", &broker.Error{Kind: broker.KindTimeout, Message: "timed out"}, http.StatusGatewayTimeout},
		{"not connected", &broker.Error{Kind: broker.KindNotConnected, Message: "down"}, http.StatusConflict},
		{"invalid recipient", &broker.Error{Kind: broker.KindInvalidTo, Message: "bad jid"}, http.StatusBadRequest},
		{"invalid media", &broker.Error{Kind: broker.KindInvalidMediaPayload, Message: "no url"}, http.StatusBadRequest},
		{"auth", &broker.Error{Kind: broker.KindAuth, Message: "bad key"}, http.StatusBadGateway},
		{"opaque broker failure", &broker.Error{Kind: broker.KindBroker, Message: "boom"}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.session.EXPECT().SendMessage(gomock.Any(), "s1", gomock.Any()).Return(nil, tt.err)

			w := f.do(t, http.MethodPost, "/api/v1/sessions/s1/messages", models.SendMessageInput{
				To: "123@s.whatsapp.net", Kind: models.MessageText, Text: "hi",
			})

			assert.Equal(t, tt.expectedCode, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, string(tt.err.Kind), body["error"])
			assert.Equal(t, tt.err.Message, body["message"])
		})
	}
}

func TestHandler_SendMessage_InvalidBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s1/messages", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST_BODY", decodeBody(t, w)["error"])
}

func TestHandler_CreatePoll(t *testing.T) {
	f := newFixture(t)
	f.session.EXPECT().CreatePoll(gomock.Any(), "s1", gomock.Any()).
		Return(&models.PollCreateResult{MessageID: "m1", PollID: "p1"}, nil)

	w := f.do(t, http.MethodPost, "/api/v1/sessions/s1/polls", models.CreatePollInput{
		To:              "123@s.whatsapp.net",
		Question:        "Best day?",
		Options:         []string{"Friday", "Saturday"},
		SelectableCount: 1,
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "p1", decodeBody(t, w)["poll_id"])
}

func TestHandler_CreatePoll_Validation(t *testing.T) {
	f := newFixture(t)
	// No service call happens for an under-specified poll.

	w := f.do(t, http.MethodPost, "/api/v1/sessions/s1/polls", models.CreatePollInput{
		To:       "123@s.whatsapp.net",
		Question: "Best day?",
		Options:  []string{"Friday"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_GetSessionStatus_NotConfigured(t *testing.T) {
	f := newFixture(t)
	f.session.EXPECT().Status(gomock.Any(), "s1").Return(nil, broker.ErrNotConfigured)

	w := f.do(t, http.MethodGet, "/api/v1/sessions/s1/status", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "BROKER_NOT_CONFIGURED", decodeBody(t, w)["error"])
}

func TestHandler_GetQRCode(t *testing.T) {
	f := newFixture(t)
	f.session.EXPECT().QRCode(gomock.Any(), "s1").Return(&models.QRCode{Code: "QR-DATA"}, nil)

	w := f.do(t, http.MethodGet, "/api/v1/sessions/s1/qr", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "QR-DATA", decodeBody(t, w)["code"])
}

func TestHandler_Poller(t *testing.T) {
	t.Run("start", func(t *testing.T) {
		f := newFixture(t)
		f.poller.EXPECT().Start().Return(nil)

		w := f.do(t, http.MethodPost, "/api/v1/poller/start", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "started", decodeBody(t, w)["status"])
	})

	t.Run("start conflict", func(t *testing.T) {
		f := newFixture(t)
		f.poller.EXPECT().Start().Return(poller.ErrPollerAlreadyRunning)

		w := f.do(t, http.MethodPost, "/api/v1/poller/start", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "POLLER_ALREADY_RUNNING", decodeBody(t, w)["error"])
	})

	t.Run("stop conflict", func(t *testing.T) {
		f := newFixture(t)
		f.poller.EXPECT().Stop().Return(poller.ErrPollerNotRunning)

		w := f.do(t, http.MethodPost, "/api/v1/poller/stop", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "POLLER_NOT_RUNNING", decodeBody(t, w)["error"])
	})
}

func TestHandler_Instances(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		f := newFixture(t)
		f.session.EXPECT().ListInstances(gomock.Any()).Return([]models.Instance{
			{ID: "i1", State: models.StateConnected},
			{ID: "i2", State: models.StateDisconnected},
		}, nil)

		w := f.do(t, http.MethodGet, "/api/v1/instances/", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(2), decodeBody(t, w)["total"])
	})

	t.Run("create", func(t *testing.T) {
		f := newFixture(t)
		f.session.EXPECT().CreateInstance(gomock.Any(), "t1", "support").
			Return(&models.Instance{ID: "i3", TenantID: "t1", Name: "support"}, nil)

		w := f.do(t, http.MethodPost, "/api/v1/instances/", map[string]string{
			"tenant_id": "t1",
			"name":      "support",
		})
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "i3", decodeBody(t, w)["id"])
	})

	t.Run("delete", func(t *testing.T) {
		f := newFixture(t)
		f.session.EXPECT().DeleteInstance(gomock.Any(), "i1").Return(nil)

		w := f.do(t, http.MethodDelete, "/api/v1/instances/i1", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "deleted", decodeBody(t, w)["status"])
	})
}
