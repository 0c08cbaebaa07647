package domain

import (
	"encoding/json"
	"time"
)

type MessageKind string

const (
	KindText  MessageKind = "text"
	KindCode  MessageKind = "code"
	KindImage MessageKind = "image"
	KindFile  MessageKind = "file"
)

func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindCode, KindImage, KindFile:
		return true
	}
	return false
}

// Message is a direct or channel message. Exactly one of ConversationID
// and ChannelID is set. A message with Pending=true was appended locally
// on send and has not been confirmed by the backend yet.
type Message struct {
	ID             string
	ConversationID string
	ChannelID      string
	SenderID       string
	Sender         *User
	Content        string
	Kind           MessageKind
	CodeLanguage   string
	Delivered      bool
	Read           bool
	IsPinned       bool
	EditedAt       *time.Time
	DeletedAt      *time.Time
	CreatedAt      time.Time
	Pending        bool
}

// ThreadID is the id of the conversation or channel this message belongs to.
func (m *Message) ThreadID() string {
	if m.ChannelID != "" {
		return m.ChannelID
	}
	return m.ConversationID
}

// Deleted reports whether the message content is suppressed from rendering.
// Deleted messages keep their id and position in the sequence.
func (m *Message) Deleted() bool { return m.DeletedAt != nil }

// Before orders messages by server-assigned creation time, with id as the
// tie-break so sorting is stable when timestamps collide.
func (m *Message) Before(other *Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

type wireMessage struct {
	MongoID      string          `json:"_id"`
	PlainID      string          `json:"id"`
	Conversation string          `json:"conversation"`
	Channel      string          `json:"channel"`
	Sender       json.RawMessage `json:"sender"`
	Content      string          `json:"content"`
	MessageType  string          `json:"messageType"`
	CodeLanguage string          `json:"codeLanguage"`
	Delivered    bool            `json:"delivered"`
	Read         bool            `json:"read"`
	IsPinned     bool            `json:"isPinned"`
	EditedAt     *time.Time      `json:"editedAt"`
	DeletedAt    *time.Time      `json:"deletedAt"`
	CreatedAt    *time.Time      `json:"createdAt"`
}

// UnmarshalJSON normalizes the two wire shapes the backend produces: the
// identifier may arrive as "_id" or "id", and "sender" may be a populated
// user object or a bare id string.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	m.ID = w.MongoID
	if m.ID == "" {
		m.ID = w.PlainID
	}
	m.ConversationID = w.Conversation
	m.ChannelID = w.Channel
	m.Content = w.Content
	m.Kind = MessageKind(w.MessageType)
	if m.Kind == "" {
		m.Kind = KindText
	}
	m.CodeLanguage = w.CodeLanguage
	m.Delivered = w.Delivered
	m.Read = w.Read
	m.IsPinned = w.IsPinned
	m.EditedAt = w.EditedAt
	m.DeletedAt = w.DeletedAt
	if w.CreatedAt != nil {
		m.CreatedAt = *w.CreatedAt
	}

	if len(w.Sender) > 0 {
		var senderID string
		if err := json.Unmarshal(w.Sender, &senderID); err == nil {
			m.SenderID = senderID
		} else {
			var sender User
			if err := json.Unmarshal(w.Sender, &sender); err != nil {
				return err
			}
			m.Sender = &sender
			m.SenderID = sender.ID
		}
	}
	return nil
}

func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{
		MongoID:      m.ID,
		Conversation: m.ConversationID,
		Channel:      m.ChannelID,
		Content:      m.Content,
		MessageType:  string(m.Kind),
		CodeLanguage: m.CodeLanguage,
		Delivered:    m.Delivered,
		Read:         m.Read,
		IsPinned:     m.IsPinned,
		EditedAt:     m.EditedAt,
		DeletedAt:    m.DeletedAt,
	}
	if !m.CreatedAt.IsZero() {
		t := m.CreatedAt
		w.CreatedAt = &t
	}
	if m.Sender != nil {
		b, err := json.Marshal(m.Sender)
		if err != nil {
			return nil, err
		}
		w.Sender = b
	} else if m.SenderID != "" {
		b, err := json.Marshal(m.SenderID)
		if err != nil {
			return nil, err
		}
		w.Sender = b
	}
	return json.Marshal(w)
}
