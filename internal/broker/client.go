package broker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/coreflowhq/wabroker/internal/config"
	"github.com/coreflowhq/wabroker/internal/models"
	"github.com/coreflowhq/wabroker/internal/payload"
)

const defaultTimeout = 15 * time.Second

// EventPage is one fetched page of the broker event feed. Items are kept
// loosely typed; the poller normalizes them.
type EventPage struct {
	Items      []map[string]any
	NextCursor string
}

// Client is the gateway to the WhatsApp broker. One instance is constructed
// at process start and shared; the learned route preference lives on it.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger

	mu   sync.Mutex
	pref routeFamily
}

// New creates a broker client. Missing base URL, API key or webhook verify
// token is fatal here, never reported as a runtime broker error.
func New(cfg config.BrokerConfig, logger *zap.Logger) (*Client, error) {
	switch {
	case cfg.BaseURL == "":
		return nil, fmt.Errorf("%w: missing base_url", ErrNotConfigured)
	case cfg.APIKey == "":
		return nil, fmt.Errorf("%w: missing api_key", ErrNotConfigured)
	case cfg.WebhookVerifyToken == "":
		return nil, fmt.Errorf("%w: missing webhook_verify_token", ErrNotConfigured)
	}

	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}, nil
}

// RoutePreference returns the learned route family as a string
// ("unknown", "broker" or "legacy").
func (c *Client) RoutePreference() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pref.String()
}

func (c *Client) preference() routeFamily {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pref
}

func (c *Client) pin(f routeFamily) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pref != f {
		c.logger.Info("Broker route preference pinned", zap.String("family", f.String()))
		c.pref = f
	}
}

// do performs one bounded HTTP request and decodes the JSON body into a map.
// Every failure comes back as a canonical *Error.
func (c *Client) do(ctx context.Context, method, path string, body any) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, newError(KindBroker, fmt.Sprintf("failed to marshal request: %v", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, newError(KindBroker, fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	c.logger.Debug("Broker request",
		zap.String("method", method),
		zap.String("path", path))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("Broker request timed out",
				zap.String("method", method),
				zap.String("path", path),
				zap.Duration("duration", duration))
			return nil, timeoutError(fmt.Sprintf("%s %s timed out after %s", method, path, c.timeout))
		}
		return nil, newError(KindBroker, fmt.Sprintf("request failed: %v", err))
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Failed to close response body", zap.Error(closeErr))
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindBroker, fmt.Sprintf("failed to read response: %v", err))
	}

	c.logger.Debug("Broker request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody map[string]any
		_ = json.Unmarshal(data, &errBody)
		be := normalizeError(
			resp.StatusCode,
			payload.FirstString(errBody, "code", "errorCode", "error_code"),
			payload.FirstString(errBody, "message", "error", "detail"),
			payload.FirstString(errBody, "requestId", "request_id"),
		)
		return nil, be
	}

	result := map[string]any{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, newError(KindBroker, fmt.Sprintf("failed to decode response: %v", err))
		}
	}
	return result, nil
}

// doSession performs a session-lifecycle call with route-family fallback.
// The preferred family goes first; the other is tried only when the first
// attempt looks like a routing miss.
func (c *Client) doSession(ctx context.Context, method, sessionID, op string, body any) (map[string]any, error) {
	order := attemptOrder(c.preference())
	attempts := make([]routeAttempt, 0, len(order))
	for _, fam := range order {
		attempts = append(attempts, routeAttempt{
			family: fam,
			method: method,
			path:   sessionPath(fam, sessionID, op),
			body:   body,
		})
	}

	var lastErr error
	for i, attempt := range attempts {
		result, err := c.do(ctx, attempt.method, attempt.path, attempt.body)
		if err == nil {
			c.pin(attempt.family)
			return result, nil
		}
		lastErr = err
		if i < len(attempts)-1 && shouldFallback(err) {
			c.logger.Debug("Broker route miss, trying other family",
				zap.String("family", attempt.family.String()),
				zap.String("path", attempt.path))
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// ConnectSession asks the broker to bring a session up.
func (c *Client) ConnectSession(ctx context.Context, sessionID string) (*models.SessionStatus, error) {
	result, err := c.doSession(ctx, http.MethodPost, sessionID, "connect", nil)
	if err != nil {
		return nil, err
	}
	return parseSessionStatus(sessionID, result), nil
}

// LogoutSession logs a session out and invalidates its credentials.
func (c *Client) LogoutSession(ctx context.Context, sessionID string) error {
	_, err := c.doSession(ctx, http.MethodPost, sessionID, "logout", nil)
	return err
}

// GetSessionStatus reads the broker-reported state of a session.
func (c *Client) GetSessionStatus(ctx context.Context, sessionID string) (*models.SessionStatus, error) {
	result, err := c.doSession(ctx, http.MethodGet, sessionID, "status", nil)
	if err != nil {
		return nil, err
	}
	return parseSessionStatus(sessionID, result), nil
}

// GetQRCode retrieves the pairing QR for a session. QR absence is a normal
// transient state: every tier degrades rather than failing, and the last
// resort is an empty result.
func (c *Client) GetQRCode(ctx context.Context, sessionID string) (*models.QRCode, error) {
	result, err := c.doSession(ctx, http.MethodGet, sessionID, "qr", nil)
	if err == nil {
		qr := parseQR(result)
		if qr.Image != "" || qr.Code != "" || qr.PairingCode != "" {
			return qr, nil
		}
		// empty body, fall through to the status payload
	} else if be, ok := AsError(err); !ok || be.HTTPStatus != 404 {
		c.logger.Warn("QR retrieval failed", zap.String("session_id", sessionID), zap.Error(err))
		return &models.QRCode{}, nil
	}

	status, err := c.GetSessionStatus(ctx, sessionID)
	if err != nil {
		c.logger.Warn("QR status fallback failed", zap.String("session_id", sessionID), zap.Error(err))
		return &models.QRCode{}, nil
	}
	return &models.QRCode{Code: status.QRCode, PairingCode: status.PairingCode}, nil
}

// SendMessage sends one outbound message through a session. Payload shape
// violations fail fast without touching the network.
func (c *Client) SendMessage(ctx context.Context, sessionID string, input models.SendMessageInput) (*models.SendResult, error) {
	body, err := buildMessageBody(input)
	if err != nil {
		return nil, err
	}

	result, err := c.doSession(ctx, http.MethodPost, sessionID, "messages", body)
	if err != nil {
		return nil, err
	}

	res := &models.SendResult{
		MessageID: payload.FirstString(result, "messageId", "message_id", "id"),
	}
	if ts := payload.FirstInt(result, "timestamp", "ts"); ts > 0 {
		res.Timestamp = time.Unix(ts, 0)
	}
	return res, nil
}

// CreatePoll sends a poll message and returns the identifiers and message
// secret the broker assigned to it.
func (c *Client) CreatePoll(ctx context.Context, sessionID string, input models.CreatePollInput) (*models.PollCreateResult, error) {
	body := map[string]any{
		"to":              input.To,
		"question":        input.Question,
		"options":         input.Options,
		"selectableCount": input.SelectableCount,
	}

	result, err := c.doSession(ctx, http.MethodPost, sessionID, "polls", body)
	if err != nil {
		return nil, err
	}

	res := &models.PollCreateResult{
		MessageID: payload.FirstString(result, "messageId", "message_id", "id"),
		PollID:    payload.FirstString(result, "pollId", "poll_id", "id"),
	}
	if secret := payload.FirstString(result, "messageSecret", "message_secret", "secret"); secret != "" {
		if raw, decErr := base64.StdEncoding.DecodeString(secret); decErr == nil {
			res.MessageSecret = raw
		} else {
			res.MessageSecret = []byte(secret)
		}
	}
	return res, nil
}

// FetchEvents reads one page of the broker event feed starting at cursor.
// The feed is process-wide, so there is no route-family fallback here.
func (c *Client) FetchEvents(ctx context.Context, cursor string, limit int) (*EventPage, error) {
	params := url.Values{}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	path := "/broker/events"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	result, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	page := &EventPage{
		NextCursor: payload.FirstString(result, "nextCursor", "next_cursor", "cursor"),
	}
	for _, item := range payload.FirstSlice(result, "events", "items", "data") {
		if m, ok := item.(map[string]any); ok {
			page.Items = append(page.Items, m)
		}
	}
	return page, nil
}

// AckEvents confirms a batch of events as durably consumed.
func (c *Client) AckEvents(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := c.do(ctx, http.MethodPost, "/broker/events/ack", map[string]any{"ids": ids})
	return err
}

// ListInstances returns all provisioned instances.
func (c *Client) ListInstances(ctx context.Context) ([]models.Instance, error) {
	result, err := c.do(ctx, http.MethodGet, "/instances", nil)
	if err != nil {
		return nil, err
	}

	var instances []models.Instance
	for _, item := range payload.FirstSlice(result, "instances", "items", "data") {
		if m, ok := item.(map[string]any); ok {
			instances = append(instances, parseInstance(m))
		}
	}
	return instances, nil
}

// CreateInstance provisions a new instance for a tenant.
func (c *Client) CreateInstance(ctx context.Context, tenantID, name string) (*models.Instance, error) {
	result, err := c.do(ctx, http.MethodPost, "/instances", map[string]any{
		"tenantId": tenantID,
		"name":     name,
	})
	if err != nil {
		return nil, err
	}
	inst := parseInstance(result)
	return &inst, nil
}

// DeleteInstance destroys an instance and wipes its session data.
func (c *Client) DeleteInstance(ctx context.Context, instanceID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/instances/"+instanceID, nil)
	return err
}

func buildMessageBody(input models.SendMessageInput) (map[string]any, error) {
	kind := input.Kind
	if kind == "" {
		kind = models.MessageText
	}

	body := map[string]any{
		"to":   input.To,
		"type": string(kind),
	}
	if input.QuotedID != "" {
		body["quotedId"] = input.QuotedID
	}

	switch kind {
	case models.MessageText:
		body["text"] = input.Text
	case models.MessageImage, models.MessageVideo, models.MessageAudio, models.MessageDocument:
		if input.MediaURL == "" {
			return nil, newError(KindInvalidMediaPayload,
				fmt.Sprintf("%s message requires a media URL", kind))
		}
		body["url"] = input.MediaURL
		if input.Caption != "" {
			body["caption"] = input.Caption
		}
		if input.FileName != "" {
			body["fileName"] = input.FileName
		}
	default:
		return nil, newError(KindUnsupportedMessageType,
			fmt.Sprintf("unsupported message type %q", kind))
	}
	return body, nil
}

func parseSessionStatus(sessionID string, m map[string]any) *models.SessionStatus {
	status := &models.SessionStatus{
		ID:          sessionID,
		TenantID:    payload.FirstString(m, "tenantId", "tenant_id"),
		State:       normalizeState(payload.FirstString(m, "state", "status", "connectionState")),
		PhoneNumber: payload.FirstString(m, "phoneNumber", "phone_number", "phone"),
		QRCode:      payload.FirstString(m, "qrCode", "qr", "qrcode"),
		PairingCode: payload.FirstString(m, "pairingCode", "pairing_code"),
	}
	if ts := payload.FirstInt(m, "lastActivityAt", "lastSeen", "last_activity_at"); ts > 0 {
		status.LastActivityAt = time.Unix(ts, 0)
	}
	if stats := payload.FirstMap(m, "stats", "counters"); stats != nil {
		status.MessagesSent = payload.FirstInt(stats, "sent", "messagesSent")
		status.MessagesDelivered = payload.FirstInt(stats, "delivered", "messagesDelivered")
	}
	return status
}

func normalizeState(raw string) models.ConnectionState {
	switch strings.ToLower(raw) {
	case "open", "connected", "online":
		return models.StateConnected
	case "connecting", "starting", "pairing":
		return models.StateConnecting
	case "qr", "qr_required", "scan_qr", "qrcode":
		return models.StateQRRequired
	default:
		return models.StateDisconnected
	}
}

func parseQR(m map[string]any) *models.QRCode {
	return &models.QRCode{
		Image:       payload.FirstString(m, "image", "qrImage", "base64Image"),
		Code:        payload.FirstString(m, "qr", "qrCode", "code"),
		PairingCode: payload.FirstString(m, "pairingCode", "pairing_code"),
	}
}

func parseInstance(m map[string]any) models.Instance {
	inst := models.Instance{
		ID:          payload.FirstString(m, "id", "instanceId", "instance_id"),
		TenantID:    payload.FirstString(m, "tenantId", "tenant_id"),
		Name:        payload.FirstString(m, "name"),
		State:       normalizeState(payload.FirstString(m, "state", "status")),
		PhoneNumber: payload.FirstString(m, "phoneNumber", "phone_number", "phone"),
	}
	if ts := payload.FirstInt(m, "createdAt", "created_at"); ts > 0 {
		inst.CreatedAt = time.Unix(ts, 0)
	}
	return inst
}
