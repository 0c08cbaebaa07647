package sync

import (
	"context"

	"github.com/alphachat/alphachat-go/internal/api"
	"github.com/alphachat/alphachat-go/internal/domain"
	"github.com/alphachat/alphachat-go/internal/realtime"
	"github.com/alphachat/alphachat-go/pkg/watch"
)

// API is the durable request/response surface the repository depends on.
// *api.Client satisfies it; tests inject a fake.
type API interface {
	CheckAuth(ctx context.Context) (*domain.User, error)
	Logout(ctx context.Context) error

	ListUsers(ctx context.Context) ([]domain.User, error)
	SearchUsers(ctx context.Context, query string) ([]domain.User, error)
	UpdateStatus(ctx context.Context, status string) error

	ListChannels(ctx context.Context) ([]domain.Channel, error)
	GetChannel(ctx context.Context, slug string, page, limit int) (*domain.ChannelDetail, error)
	JoinChannel(ctx context.Context, channelID string) error
	LeaveChannel(ctx context.Context, channelID string) error

	Conversations(ctx context.Context) ([]domain.Conversation, error)
	GetConversation(ctx context.Context, recipientID string, page, limit int) (*domain.ConversationDetail, error)
	SendDirectMessage(ctx context.Context, recipientID string, in api.SendMessageInput) (*domain.Message, error)
	SendChannelMessage(ctx context.Context, channelID string, in api.SendMessageInput) (*domain.Message, error)
	ToggleReaction(ctx context.Context, messageID, emoji, messageType string) error
}

// Conn is the realtime connection surface the repository depends on.
// *realtime.Conn satisfies it; tests inject a fake. The repository is the
// only caller of Connect and Disconnect.
type Conn interface {
	Connect(ctx context.Context, userID string) error
	Disconnect()
	State() *watch.Value[realtime.State]
	Events() <-chan realtime.Event

	JoinChannelRoom(channelID string)
	LeaveChannelRoom(channelID string)
	SendTyping(isTyping bool, recipientID, channelID string)
	MarkAsRead(conversationID, senderID string)
}
