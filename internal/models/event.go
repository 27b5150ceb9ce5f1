package models

import "time"

// EventType classifies an inbound broker event.
type EventType string

const (
	EventMessageReceived EventType = "message.received"
	EventMessageUpdate   EventType = "message.update"
	EventPollVote        EventType = "poll.vote"
	EventSessionStatus   EventType = "session.status"
	EventUnknown         EventType = "unknown"
)

// BrokerEvent is one normalized inbound notification from the broker.
// ID is unique per event; AckToken, when present, is the broker-supplied
// token to acknowledge this event with instead of the ID.
type BrokerEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	AckToken  string         `json:"ack_token,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// AckState is the durable snapshot of the last acknowledged batch.
// It is mutated only by the poller and read at startup to resume.
type AckState struct {
	Timestamp time.Time `json:"timestamp"`
	Cursor    string    `json:"cursor"`
	Count     int       `json:"count"`
}
