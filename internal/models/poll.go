package models

import "time"

// PollOption is one selectable answer of a poll.
type PollOption struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Index int    `json:"index"`
}

// SecretEnvelope is the versioned encrypted form of a poll's message secret.
// IV, Tag and Ciphertext are base64 encoded.
type SecretEnvelope struct {
	V          int    `json:"v"`
	IV         string `json:"iv"`
	Tag        string `json:"tag"`
	Ciphertext string `json:"ciphertext"`
}

// VoteSelection is the most recent vote of one voter in one poll.
type VoteSelection struct {
	VoterJID  string       `json:"voter_jid"`
	OptionIDs []string     `json:"option_ids"`
	Options   []PollOption `json:"options,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// PollMetadata is the runtime record for one poll. The poll store owns and
// mutates these in memory; durable storage only holds serialized snapshots.
type PollMetadata struct {
	PollID            string                   `json:"poll_id"`
	Question          string                   `json:"question"`
	Options           []PollOption             `json:"options"`
	SelectableCount   int                      `json:"selectable_count"`
	MultiAnswer       bool                     `json:"multi_answer"`
	CreationMessageID string                   `json:"creation_message_id,omitempty"`
	TenantID          string                   `json:"tenant_id,omitempty"`
	InstanceID        string                   `json:"instance_id,omitempty"`
	Secret            *SecretEnvelope          `json:"secret,omitempty"`
	SecretFingerprint string                   `json:"secret_fingerprint,omitempty"`
	CreatorJID        string                   `json:"creator_jid,omitempty"`
	ReceiptHints      []string                 `json:"receipt_hints,omitempty"`
	Votes             map[string]VoteSelection `json:"votes,omitempty"`
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at"`
	ExpiresAt         time.Time                `json:"expires_at"`
}
