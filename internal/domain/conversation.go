package domain

import (
	"encoding/json"
	"time"
)

// Conversation is a two-party direct-message thread. OtherUser is derived
// from ParticipantIDs and the user directory for the current user; it is
// recomputed on every refresh, never stored.
type Conversation struct {
	ID             string
	ParticipantIDs []string
	LastMessage    string
	LastActivityAt *time.Time
	UnreadCount    int
	OtherUser      *User
}

type wireConversation struct {
	MongoID      string          `json:"_id"`
	PlainID      string          `json:"id"`
	Participants json.RawMessage `json:"participants"`
	LastMessage  string          `json:"lastMessage"`
	LastActivity *time.Time      `json:"lastActivity"`
	UnreadCount  int             `json:"unreadCount"`
}

// UnmarshalJSON accepts participants either as id strings or as populated
// user objects, normalizing to ids.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	var w wireConversation
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	c.ID = w.MongoID
	if c.ID == "" {
		c.ID = w.PlainID
	}
	c.LastMessage = w.LastMessage
	c.LastActivityAt = w.LastActivity
	c.UnreadCount = w.UnreadCount
	c.OtherUser = nil
	c.ParticipantIDs = nil

	if len(w.Participants) > 0 {
		var ids []string
		if err := json.Unmarshal(w.Participants, &ids); err == nil {
			c.ParticipantIDs = ids
		} else {
			var users []User
			if err := json.Unmarshal(w.Participants, &users); err != nil {
				return err
			}
			for _, u := range users {
				c.ParticipantIDs = append(c.ParticipantIDs, u.ID)
			}
		}
	}
	return nil
}

// ResolveOther returns the participant who is not currentUserID, looked up
// in the given directory. Returns nil when the counterpart is absent from
// the directory; callers must not substitute a stale cached value.
func (c *Conversation) ResolveOther(currentUserID string, directory []User) *User {
	for _, pid := range c.ParticipantIDs {
		if pid == currentUserID {
			continue
		}
		for i := range directory {
			if directory[i].ID == pid {
				u := directory[i]
				return &u
			}
		}
		return nil
	}
	return nil
}

// ConversationDetail is the GET /api/messages/dm/{recipientId} response:
// the conversation record plus one page of its messages.
type ConversationDetail struct {
	Conversation Conversation `json:"conversation"`
	Messages     []Message    `json:"messages"`
	Pagination   *Pagination  `json:"pagination,omitempty"`
}

type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}
