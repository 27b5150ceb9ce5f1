// Package models defines data structures used throughout the application.
package models

import "time"

// ConnectionState is the broker-reported state of one WhatsApp line.
type ConnectionState string

const (
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateDisconnected ConnectionState = "disconnected"
	StateQRRequired   ConnectionState = "qr_required"
)

// SessionStatus describes one connected WhatsApp line as reported by the broker.
type SessionStatus struct {
	ID                string          `json:"id"`
	TenantID          string          `json:"tenant_id,omitempty"`
	State             ConnectionState `json:"state"`
	PhoneNumber       string          `json:"phone_number,omitempty"`
	QRCode            string          `json:"qr_code,omitempty"`
	PairingCode       string          `json:"pairing_code,omitempty"`
	LastActivityAt    time.Time       `json:"last_activity_at,omitempty"`
	MessagesSent      int64           `json:"messages_sent,omitempty"`
	MessagesDelivered int64           `json:"messages_delivered,omitempty"`
}

// Instance is a provisioned broker instance (one WhatsApp line slot).
type Instance struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id,omitempty"`
	Name        string          `json:"name,omitempty"`
	State       ConnectionState `json:"state"`
	PhoneNumber string          `json:"phone_number,omitempty"`
	CreatedAt   time.Time       `json:"created_at,omitempty"`
}

// QRCode is the result of a QR retrieval. All fields may be empty; an absent
// QR is a normal transient state, not an error.
type QRCode struct {
	Image       string `json:"image,omitempty"`
	Code        string `json:"code,omitempty"`
	PairingCode string `json:"pairing_code,omitempty"`
}

// MessageKind selects the payload shape of an outbound message.
type MessageKind string

const (
	MessageText     MessageKind = "text"
	MessageImage    MessageKind = "image"
	MessageVideo    MessageKind = "video"
	MessageAudio    MessageKind = "audio"
	MessageDocument MessageKind = "document"
)

// SendMessageInput is the typed payload for an outbound message.
// Media kinds require a non-empty MediaURL.
type SendMessageInput struct {
	To       string      `json:"to"`
	Kind     MessageKind `json:"kind"`
	Text     string      `json:"text,omitempty"`
	MediaURL string      `json:"media_url,omitempty"`
	Caption  string      `json:"caption,omitempty"`
	FileName string      `json:"file_name,omitempty"`
	QuotedID string      `json:"quoted_id,omitempty"`
}

// SendResult is the broker's confirmation of an accepted outbound message.
type SendResult struct {
	MessageID string    `json:"message_id"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// CreatePollInput is the typed payload for an outbound poll message.
type CreatePollInput struct {
	To              string   `json:"to"`
	Question        string   `json:"question"`
	Options         []string `json:"options"`
	SelectableCount int      `json:"selectable_count"`
}

// PollCreateResult carries the identifiers the broker assigned to a new poll,
// plus the message secret needed later to decode vote payloads.
type PollCreateResult struct {
	MessageID     string `json:"message_id"`
	PollID        string `json:"poll_id"`
	MessageSecret []byte `json:"-"`
}
