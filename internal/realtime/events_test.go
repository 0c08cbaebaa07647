package realtime

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/alphachat/alphachat-go/internal/domain"
)

func env(event, data string) Envelope {
	return Envelope{Event: event, Data: json.RawMessage(data)}
}

func TestDecodeDirectMessage(t *testing.T) {
	ev, err := DecodeEvent(env(EventDirectMessage, `{
		"_id": "m1",
		"conversation": "c1",
		"sender": {"_id": "u1", "username": "ana"},
		"content": "hello",
		"messageType": "text",
		"createdAt": "2025-03-01T10:00:00Z"
	}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	dm, ok := ev.(*DirectMessage)
	if !ok {
		t.Fatalf("expected *DirectMessage, got %T", ev)
	}
	if dm.Message.ID != "m1" || dm.Message.SenderID != "u1" || dm.Message.ThreadID() != "c1" {
		t.Errorf("message = %+v", dm.Message)
	}
}

func TestDecodeChannelMessage(t *testing.T) {
	ev, err := DecodeEvent(env(EventChannelMessage, `{
		"_id": "m2", "channel": "ch1", "sender": "u1", "content": "hi"
	}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	cm := ev.(*ChannelMessage)
	if cm.Message.ChannelID != "ch1" {
		t.Errorf("channel = %q", cm.Message.ChannelID)
	}
}

func TestDecodeOnlineUsers(t *testing.T) {
	ev, err := DecodeEvent(env(EventOnlineUsers, `[
		{"userId": "u1", "status": "online"},
		{"userId": "", "status": "online"},
		{"userId": "u2", "status": "away"}
	]`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ou := ev.(*OnlineUsers)
	if len(ou.Users) != 2 {
		t.Errorf("entries without a userId must be dropped: %+v", ou.Users)
	}
}

func TestDecodeUserTyping(t *testing.T) {
	ev, err := DecodeEvent(env(EventUserTyping, `{"senderId": "u1", "isTyping": true, "channelId": "ch1"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ut := ev.(*UserTyping)
	if !ut.IsTyping || ut.ChannelID != "ch1" || ut.RecipientID != "" {
		t.Errorf("event = %+v", ut)
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
	}{
		{"direct message missing id", env(EventDirectMessage, `{"conversation": "c1", "sender": "u1"}`)},
		{"direct message missing thread", env(EventDirectMessage, `{"_id": "m1", "sender": "u1"}`)},
		{"channel message missing channel", env(EventChannelMessage, `{"_id": "m1", "sender": "u1"}`)},
		{"typing missing sender", env(EventUserTyping, `{"isTyping": true}`)},
		{"typing with both targets", env(EventUserTyping, `{"senderId": "u1", "isTyping": true, "channelId": "ch1", "recipientId": "u2"}`)},
		{"messages read missing reader", env(EventMessagesRead, `{"conversationId": "c1"}`)},
		{"online users not an array", env(EventOnlineUsers, `{"userId": "u1"}`)},
		{"garbage json", env(EventDirectMessage, `{nope`)},
		{"unknown event", env("somethingElse", `{}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEvent(tt.env)
			if !errors.Is(err, domain.ErrMalformedPayload) {
				t.Errorf("expected ErrMalformedPayload, got %v", err)
			}
		})
	}
}
