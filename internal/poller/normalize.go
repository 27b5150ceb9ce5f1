package poller

import (
	"strings"
	"time"

	"github.com/coreflowhq/wabroker/internal/models"
	"github.com/coreflowhq/wabroker/internal/payload"
)

// millisThreshold separates unix-second from unix-millisecond timestamps.
const millisThreshold = int64(1e12)

// normalizeEvent turns one raw feed item into a typed event. The caller has
// already verified the id is non-empty.
func normalizeEvent(id string, raw map[string]any) models.BrokerEvent {
	event := models.BrokerEvent{
		ID:        id,
		Type:      normalizeEventType(payload.FirstString(raw, "type", "event", "kind")),
		SessionID: payload.FirstString(raw, "sessionId", "session_id", "instanceId", "instance_id"),
		AckToken:  payload.FirstString(raw, "ackToken", "ack_token"),
		Timestamp: normalizeTimestamp(payload.FirstInt(raw, "timestamp", "ts", "time")),
	}

	if body := payload.FirstMap(raw, "payload", "data", "body"); body != nil {
		event.Payload = body
	} else {
		event.Payload = raw
	}
	return event
}

func normalizeEventType(raw string) models.EventType {
	switch strings.ToLower(raw) {
	case "message.received", "message_received", "message":
		return models.EventMessageReceived
	case "message.update", "message_update", "message.status":
		return models.EventMessageUpdate
	case "poll.vote", "poll_vote", "pollvote":
		return models.EventPollVote
	case "session.status", "connection.update", "session_status":
		return models.EventSessionStatus
	case "":
		return models.EventUnknown
	default:
		return models.EventType(strings.ToLower(raw))
	}
}

func normalizeTimestamp(ts int64) time.Time {
	switch {
	case ts > millisThreshold:
		return time.UnixMilli(ts)
	case ts > 0:
		return time.Unix(ts, 0)
	default:
		return time.Now()
	}
}
