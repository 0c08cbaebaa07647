package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/alphachat/alphachat-go/internal/domain"
)

// Wire event names, client to server.
const (
	EventJoin         = "join"
	EventJoinChannel  = "joinChannel"
	EventLeaveChannel = "leaveChannel"
	EventTyping       = "typing"
	EventMarkAsRead   = "markAsRead"
)

// Wire event names, server to client.
const (
	EventDirectMessage  = "directMessage"
	EventChannelMessage = "channelMessage"
	EventOnlineUsers    = "onlineUsers"
	EventUserTyping     = "userTyping"
	EventMessagesRead   = "messagesRead"
)

// Envelope is the frame carried on the socket in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is the closed set of typed inbound events. Anything that does not
// decode into one of these is dropped at the connection boundary.
type Event interface{ event() }

type DirectMessage struct {
	Message domain.Message
}

type ChannelMessage struct {
	Message domain.Message
}

// OnlineUsers is a full presence snapshot. Seq is stamped by the
// connection in arrival order so consumers can drop snapshots that arrive
// late out of a burst.
type OnlineUsers struct {
	Seq   uint64
	Users []domain.Presence
}

type UserTyping struct {
	SenderID    string `json:"senderId"`
	IsTyping    bool   `json:"isTyping"`
	ChannelID   string `json:"channelId,omitempty"`
	RecipientID string `json:"recipientId,omitempty"`
}

type MessagesRead struct {
	ConversationID string `json:"conversationId"`
	ReaderID       string `json:"readerId"`
}

// ConnectionDown is not a wire event. The connection injects it into the
// stream when a transport drops so consumers can reset state derived from
// earlier push events in order with the stream itself, even when a fast
// drop-and-reconnect never surfaces in the conflated State value.
type ConnectionDown struct{}

func (*DirectMessage) event()  {}
func (*ChannelMessage) event() {}
func (*OnlineUsers) event()    {}
func (*UserTyping) event()     {}
func (*MessagesRead) event()   {}
func (*ConnectionDown) event() {}

// DecodeEvent turns a wire envelope into a typed event, or reports the
// payload as malformed. A malformed payload never terminates the stream;
// the caller logs and drops it.
func DecodeEvent(env Envelope) (Event, error) {
	switch env.Event {
	case EventDirectMessage:
		var msg domain.Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return nil, malformed(env.Event, err)
		}
		if msg.ID == "" || msg.SenderID == "" || msg.ThreadID() == "" {
			return nil, malformed(env.Event, fmt.Errorf("missing required field"))
		}
		return &DirectMessage{Message: msg}, nil

	case EventChannelMessage:
		var msg domain.Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return nil, malformed(env.Event, err)
		}
		if msg.ID == "" || msg.SenderID == "" || msg.ChannelID == "" {
			return nil, malformed(env.Event, fmt.Errorf("missing required field"))
		}
		return &ChannelMessage{Message: msg}, nil

	case EventOnlineUsers:
		var entries []domain.Presence
		if err := json.Unmarshal(env.Data, &entries); err != nil {
			return nil, malformed(env.Event, err)
		}
		users := entries[:0]
		for _, e := range entries {
			if e.UserID != "" {
				users = append(users, e)
			}
		}
		return &OnlineUsers{Users: users}, nil

	case EventUserTyping:
		var ev UserTyping
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return nil, malformed(env.Event, err)
		}
		if ev.SenderID == "" {
			return nil, malformed(env.Event, fmt.Errorf("missing senderId"))
		}
		if ev.IsTyping && ev.ChannelID != "" && ev.RecipientID != "" {
			return nil, malformed(env.Event, fmt.Errorf("both channelId and recipientId set"))
		}
		return &ev, nil

	case EventMessagesRead:
		var ev MessagesRead
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return nil, malformed(env.Event, err)
		}
		if ev.ConversationID == "" || ev.ReaderID == "" {
			return nil, malformed(env.Event, fmt.Errorf("missing required field"))
		}
		return &ev, nil
	}
	return nil, malformed(env.Event, fmt.Errorf("unknown event"))
}

func malformed(event string, err error) error {
	return fmt.Errorf("%s: %v: %w", event, err, domain.ErrMalformedPayload)
}
