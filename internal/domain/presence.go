package domain

import "time"

// Presence is one entry of an online-users snapshot. Snapshots replace the
// whole table; entries are never merged across snapshots.
type Presence struct {
	UserID   string `json:"userId"`
	Status   string `json:"status"`
	JoinedAt string `json:"joinedAt,omitempty"`
}

// TypingInfo records that a sender is composing a message. Exactly one of
// ChannelID and RecipientID is set. ExpiresAt is assigned locally; a stuck
// indicator clears itself when the deadline passes.
type TypingInfo struct {
	ChannelID   string
	RecipientID string
	ExpiresAt   time.Time
}
