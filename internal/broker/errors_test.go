package broker

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeError_Priority(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		code     string
		message  string
		expected Kind
	}{
		{
			name:     "status 429 wins over code",
			status:   429,
			code:     "SOME_OTHER_CODE",
			message:  "whatever",
			expected: KindRateLimited,
		},
		{
			name:     "status 401 maps to auth",
			status:   401,
			code:     "",
			message:  "",
			expected: KindAuth,
		},
		{
			name:     "status 403 maps to auth",
			status:   403,
			expected: KindAuth,
		},
		{
			name:     "status 408 maps to timeout",
			status:   408,
			expected: KindTimeout,
		},
		{
			name:     "broker code consulted before message",
			status:   500,
			code:     "session_not_connected",
			message:  "rate limit exceeded",
			expected: KindNotConnected,
		},
		{
			name:     "invalid recipient code",
			status:   400,
			code:     "INVALID_JID",
			expected: KindInvalidTo,
		},
		{
			name:     "message keyword fallback",
			status:   500,
			message:  "the instance is not connected",
			expected: KindNotConnected,
		},
		{
			name:     "timeout keyword",
			status:   502,
			message:  "upstream timed out",
			expected: KindTimeout,
		},
		{
			name:     "unrecognized failure defaults to broker error",
			status:   500,
			code:     "SOMETHING_ELSE",
			message:  "boom",
			expected: KindBroker,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := normalizeError(tt.status, tt.code, tt.message, "req-1")
			assert.Equal(t, tt.expected, err.Kind)
			assert.Equal(t, tt.status, err.HTTPStatus)
			assert.Equal(t, tt.code, err.BrokerCode)
			assert.Equal(t, "req-1", err.RequestID)
		})
	}
}

func TestNormalizeError_EmptyMessage(t *testing.T) {
	err := normalizeError(500, "", "", "")
	assert.Equal(t, "broker returned status 500", err.Message)
}

func TestError_Retryable(t *testing.T) {
	retryable := []Kind{KindRateLimited, KindTimeout, KindBroker}
	for _, kind := range retryable {
		assert.True(t, (&Error{Kind: kind}).Retryable(), string(kind))
	}

	terminal := []Kind{
		KindNotConnected, KindInvalidTo, KindAuth,
		KindInvalidMediaPayload, KindUnsupportedMessageType, KindDirectRouteUnavailable,
	}
	for _, kind := range terminal {
		assert.False(t, (&Error{Kind: kind}).Retryable(), string(kind))
	}
}

func TestAsError(t *testing.T) {
	be, ok := AsError(fmt.Errorf("wrapped: %w", &Error{Kind: KindTimeout}))
	assert.True(t, ok)
	assert.Equal(t, KindTimeout, be.Kind)

	_, ok = AsError(errors.New("plain"))
	assert.False(t, ok)
}

func TestShouldFallback(t *testing.T) {
	assert.True(t, shouldFallback(&Error{HTTPStatus: 404, BrokerCode: "NOT_FOUND"}))
	assert.True(t, shouldFallback(&Error{HTTPStatus: 404}))

	// A 404 carrying a disconnection code is a real state, not a routing miss.
	assert.False(t, shouldFallback(&Error{HTTPStatus: 404, BrokerCode: "SESSION_NOT_CONNECTED"}))
	assert.False(t, shouldFallback(&Error{HTTPStatus: 404, BrokerCode: "not_connected"}))

	assert.False(t, shouldFallback(&Error{HTTPStatus: 500}))
	assert.False(t, shouldFallback(errors.New("not a broker error")))
}

func TestAttemptOrder(t *testing.T) {
	assert.Equal(t, [2]routeFamily{familyBroker, familyLegacy}, attemptOrder(familyUnknown))
	assert.Equal(t, [2]routeFamily{familyBroker, familyLegacy}, attemptOrder(familyBroker))
	assert.Equal(t, [2]routeFamily{familyLegacy, familyBroker}, attemptOrder(familyLegacy))
}

func TestSessionPath(t *testing.T) {
	assert.Equal(t, "/broker/session/s1/connect", sessionPath(familyBroker, "s1", "connect"))
	assert.Equal(t, "/instances/s1/status", sessionPath(familyLegacy, "s1", "status"))
	assert.Equal(t, "/broker/session/s1", sessionPath(familyBroker, "s1", ""))
	assert.Equal(t, "/broker/session/s1/qr", sessionPath(familyUnknown, "s1", "qr"))
}
