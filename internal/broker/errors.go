// Package broker implements the gateway client for the WhatsApp broker.
// It is the single choke point for all broker HTTP calls: authentication,
// timeouts, route-family fallback and error normalization all live here.
package broker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotConfigured is returned by New when the broker base URL, API key or
// webhook verify token is missing. It is a construction-time failure and is
// never produced by a runtime broker call.
var ErrNotConfigured = errors.New("broker integration is not configured")

// Kind is a canonical broker error kind. Every raw HTTP or transport failure
// maps into exactly one Kind before surfacing to callers.
type Kind string

const (
	KindRateLimited  Kind = "RATE_LIMITED"
	KindTimeout      Kind = "BROKER_TIMEOUT"
	KindNotConnected Kind = "INSTANCE_NOT_CONNECTED"
	KindInvalidTo    Kind = "INVALID_TO"
	KindAuth         Kind = "BROKER_AUTH"
	KindBroker       Kind = "BROKER_ERROR"

	// Caller-input kinds. These fail fast without a network call and are
	// never retried.
	KindInvalidMediaPayload    Kind = "INVALID_MEDIA_PAYLOAD"
	KindUnsupportedMessageType Kind = "UNSUPPORTED_MESSAGE_TYPE"
	KindDirectRouteUnavailable Kind = "DIRECT_ROUTE_UNAVAILABLE"
)

// Error is a normalized broker failure. BrokerCode and RequestID are the raw
// values extracted from the broker's error body, kept for logging only.
type Error struct {
	Kind       Kind
	Message    string
	HTTPStatus int
	BrokerCode string
	RequestID  string
}

func (e *Error) Error() string {
	if e.BrokerCode != "" {
		return fmt.Sprintf("broker: %s (%s): %s", e.Kind, e.BrokerCode, e.Message)
	}
	return fmt.Sprintf("broker: %s: %s", e.Kind, e.Message)
}

// Retryable reports whether a caller may retry the operation later.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindTimeout, KindBroker:
		return true
	}
	return false
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// AsError unwraps err into an *Error when possible.
func AsError(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// notConnectedCodes are broker codes that mean the session itself is down.
// A 404 carrying one of these must not trigger the route-family fallback,
// otherwise a real disconnection would be masked as a routing problem.
var notConnectedCodes = map[string]bool{
	"NOT_CONNECTED":         true,
	"SESSION_NOT_CONNECTED": true,
	"INSTANCE_DISCONNECTED": true,
	"SESSION_CLOSED":        true,
}

func isNotConnectedCode(code string) bool {
	return notConnectedCodes[strings.ToUpper(code)]
}

// codeKinds maps normalized broker codes to canonical kinds. Consulted after
// the HTTP status and before message keywords.
var codeKinds = map[string]Kind{
	"RATE_LIMITED":          KindRateLimited,
	"RATE_LIMIT_EXCEEDED":   KindRateLimited,
	"TOO_MANY_REQUESTS":     KindRateLimited,
	"REQUEST_TIMEOUT":       KindTimeout,
	"TIMEOUT":               KindTimeout,
	"NOT_CONNECTED":         KindNotConnected,
	"SESSION_NOT_CONNECTED": KindNotConnected,
	"INSTANCE_DISCONNECTED": KindNotConnected,
	"SESSION_CLOSED":        KindNotConnected,
	"INVALID_TO":            KindInvalidTo,
	"INVALID_RECIPIENT":     KindInvalidTo,
	"INVALID_JID":           KindInvalidTo,
	"UNAUTHORIZED":          KindAuth,
	"FORBIDDEN":             KindAuth,
	"INVALID_API_KEY":       KindAuth,
}

// messageKinds are keyword heuristics applied to the broker's error message
// as a last resort.
var messageKinds = []struct {
	keyword string
	kind    Kind
}{
	{"rate limit", KindRateLimited},
	{"too many requests", KindRateLimited},
	{"not connected", KindNotConnected},
	{"disconnected", KindNotConnected},
	{"invalid recipient", KindInvalidTo},
	{"invalid jid", KindInvalidTo},
	{"unauthorized", KindAuth},
	{"timed out", KindTimeout},
	{"timeout", KindTimeout},
}

// normalizeError maps a non-2xx broker response into a canonical error.
// Priority: HTTP status, then the broker-supplied code, then message keywords.
func normalizeError(status int, code, message, requestID string) *Error {
	e := &Error{
		Kind:       KindBroker,
		Message:    message,
		HTTPStatus: status,
		BrokerCode: code,
		RequestID:  requestID,
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("broker returned status %d", status)
	}

	switch status {
	case 429:
		e.Kind = KindRateLimited
		return e
	case 401, 403:
		e.Kind = KindAuth
		return e
	case 408:
		e.Kind = KindTimeout
		return e
	}

	if kind, ok := codeKinds[strings.ToUpper(code)]; ok {
		e.Kind = kind
		return e
	}

	lower := strings.ToLower(message)
	for _, mk := range messageKinds {
		if strings.Contains(lower, mk.keyword) {
			e.Kind = mk.kind
			return e
		}
	}

	return e
}

// timeoutError is the canonical form of a cancelled or expired request.
func timeoutError(message string) *Error {
	return &Error{
		Kind:       KindTimeout,
		Message:    message,
		HTTPStatus: 408,
		BrokerCode: "REQUEST_TIMEOUT",
	}
}
