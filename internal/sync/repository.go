// Package sync holds the authoritative in-memory state for everything a
// consumer renders: conversations, channels, per-thread message sequences,
// presence and typing. It merges durable fetch results with push events
// from the realtime connection and exposes each collection as an
// observable value.
package sync

import (
	"context"
	"fmt"
	"log"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alphachat/alphachat-go/internal/api"
	"github.com/alphachat/alphachat-go/internal/config"
	"github.com/alphachat/alphachat-go/internal/domain"
	"github.com/alphachat/alphachat-go/internal/realtime"
	"github.com/alphachat/alphachat-go/internal/session"
	"github.com/alphachat/alphachat-go/pkg/validator"
	"github.com/alphachat/alphachat-go/pkg/watch"
)

type Repository struct {
	api       API
	conn      Conn
	session   *session.Store
	typingTTL time.Duration

	currentUser   *watch.Value[*domain.User]
	users         *watch.Value[[]domain.User]
	conversations *watch.Value[[]domain.Conversation]
	channels      *watch.Value[[]domain.Channel]
	presence      *watch.Value[[]domain.Presence]
	typing        *watch.Value[map[string]domain.TypingInfo]

	// mu guards the fields below it.
	mu              stdsync.Mutex
	threads         map[string]*watch.Value[[]domain.Message]
	convByRecipient map[string]string
	activeGen       uuid.UUID
	lastPresence    uint64
}

func New(apiClient API, conn Conn, sess *session.Store, cfg *config.Config) *Repository {
	return &Repository{
		api:             apiClient,
		conn:            conn,
		session:         sess,
		typingTTL:       cfg.TypingTTL,
		currentUser:     watch.NewValue[*domain.User](nil),
		users:           watch.NewValue[[]domain.User](nil),
		conversations:   watch.NewValue[[]domain.Conversation](nil),
		channels:        watch.NewValue[[]domain.Channel](nil),
		presence:        watch.NewValue[[]domain.Presence](nil),
		typing:          watch.NewValue(map[string]domain.TypingInfo{}),
		threads:         make(map[string]*watch.Value[[]domain.Message]),
		convByRecipient: make(map[string]string),
	}
}

// Run is the single-writer loop for push events: it consumes the
// connection's event stream, expires stale typing entries, and resets the
// ephemeral tables when the connection drops. Run it in its own goroutine;
// it returns when ctx is done.
func (r *Repository) Run(ctx context.Context) {
	states := r.conn.State().Subscribe(ctx)
	sweep := time.NewTicker(time.Second)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.conn.Events():
			r.apply(ev)
		case st := <-states:
			if st == realtime.StateDisconnected || st == realtime.StateError {
				r.clearEphemeral()
			}
		case now := <-sweep.C:
			r.expireTyping(now)
		}
	}
}

// --- observable state ---

func (r *Repository) CurrentUser() *watch.Value[*domain.User]              { return r.currentUser }
func (r *Repository) Users() *watch.Value[[]domain.User]                   { return r.users }
func (r *Repository) Conversations() *watch.Value[[]domain.Conversation]   { return r.conversations }
func (r *Repository) Channels() *watch.Value[[]domain.Channel]             { return r.channels }
func (r *Repository) Presence() *watch.Value[[]domain.Presence]            { return r.presence }
func (r *Repository) Typing() *watch.Value[map[string]domain.TypingInfo]   { return r.typing }
func (r *Repository) ConnectionState() *watch.Value[realtime.State]        { return r.conn.State() }

// Messages returns the live message sequence for a conversation or channel
// id, creating it on first access. The value is cached for the session's
// lifetime so every subscriber shares one sequence.
func (r *Repository) Messages(threadID string) *watch.Value[[]domain.Message] {
	return r.thread(threadID)
}

// --- commands ---

// CheckAuth validates the stored credential against the backend. On
// success it publishes the current user, caches the user id, and opens the
// realtime connection. Any failure leaves the repository unauthenticated;
// it is logged, never propagated.
func (r *Repository) CheckAuth(ctx context.Context) *domain.User {
	user, err := r.api.CheckAuth(ctx)
	if err != nil {
		log.Printf("sync: auth check failed: %v", err)
		r.currentUser.Set(nil)
		return nil
	}

	r.currentUser.Set(user)
	if err := r.session.SaveUserID(user.ID); err != nil {
		log.Printf("sync: caching user id: %v", err)
	}
	if err := r.conn.Connect(ctx, user.ID); err != nil {
		log.Printf("sync: realtime connect: %v", err)
	}
	return user
}

// FetchUsers refreshes the user directory.
func (r *Repository) FetchUsers(ctx context.Context) error {
	users, err := r.api.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("fetching users: %w", err)
	}
	r.users.Set(users)
	return nil
}

// FetchConversations retrieves the conversation list and the user
// directory together, resolves each conversation's counterpart against the
// fresh directory, and replaces the published list in one step. On failure
// the previously published list stays visible.
func (r *Repository) FetchConversations(ctx context.Context) error {
	var (
		convs []domain.Conversation
		users []domain.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		convs, err = r.api.Conversations(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = r.api.ListUsers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("fetching conversations: %w", err)
	}

	meID := r.currentUserID()
	r.mu.Lock()
	for i := range convs {
		convs[i].OtherUser = convs[i].ResolveOther(meID, users)
		if convs[i].OtherUser != nil {
			r.convByRecipient[convs[i].OtherUser.ID] = convs[i].ID
		}
	}
	r.mu.Unlock()

	r.users.Set(users)
	r.conversations.Set(convs)
	return nil
}

// FetchChannels refreshes the channel list with membership flags.
func (r *Repository) FetchChannels(ctx context.Context) error {
	channels, err := r.api.ListChannels(ctx)
	if err != nil {
		return fmt.Errorf("fetching channels: %w", err)
	}
	r.channels.Set(channels)
	return nil
}

// LoadConversation fetches a message page for the thread with recipientID,
// creating the conversation server-side on first contact. The page is
// merged into the thread's live sequence only while this is still the
// active selection; a result that lands after the consumer switched
// threads is returned to the caller but not spliced in.
func (r *Repository) LoadConversation(ctx context.Context, recipientID string, page int) (*domain.ConversationDetail, error) {
	gen := r.setActive()

	detail, err := r.api.GetConversation(ctx, recipientID, page, 0)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.convByRecipient[recipientID] = detail.Conversation.ID
	stale := r.activeGen != gen
	r.mu.Unlock()

	if !stale {
		r.thread(detail.Conversation.ID).Update(func(seq []domain.Message) []domain.Message {
			return MergePage(seq, detail.Messages)
		})
	}
	return detail, nil
}

// LoadChannel fetches a channel by slug with one page of messages, merged
// into the channel's live sequence under the same active-selection rule as
// LoadConversation.
func (r *Repository) LoadChannel(ctx context.Context, slug string, page int) (*domain.ChannelDetail, error) {
	gen := r.setActive()

	detail, err := r.api.GetChannel(ctx, slug, page, 0)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	stale := r.activeGen != gen
	r.mu.Unlock()

	if !stale && detail.Channel.ID != "" {
		r.thread(detail.Channel.ID).Update(func(seq []domain.Message) []domain.Message {
			seq = MergePage(seq, detail.Messages)
			return MergePage(seq, detail.PinnedMessages)
		})
	}
	return detail, nil
}

// SendDirectMessage issues the durable write, appending an optimistic
// local entry first when the conversation id is already known. The
// confirmed message replaces the optimistic one; if the same message also
// arrives as a push event the merge keeps a single entry. On failure the
// optimistic entry stays, marked pending.
func (r *Repository) SendDirectMessage(ctx context.Context, recipientID, content string, kind domain.MessageKind, codeLanguage string) (*domain.Message, error) {
	if errs := validator.ValidateMessage(content, kind, codeLanguage); errs.HasErrors() {
		return nil, errs
	}

	r.mu.Lock()
	convID := r.convByRecipient[recipientID]
	r.mu.Unlock()

	localID := ""
	if convID != "" {
		localID = r.appendOptimistic(convID, "", content, kind, codeLanguage)
	}

	msg, err := r.api.SendDirectMessage(ctx, recipientID, api.SendMessageInput{
		Content:      content,
		Kind:         kind,
		CodeLanguage: codeLanguage,
	})
	if err != nil {
		return nil, fmt.Errorf("sending direct message: %w", err)
	}
	if msg.ConversationID == "" {
		msg.ConversationID = convID
	}

	r.mu.Lock()
	if msg.ConversationID != "" {
		r.convByRecipient[recipientID] = msg.ConversationID
	}
	r.mu.Unlock()

	r.confirmSend(msg.ThreadID(), localID, *msg)
	r.touchConversation(*msg, false)
	return msg, nil
}

// SendChannelMessage is the channel counterpart of SendDirectMessage.
func (r *Repository) SendChannelMessage(ctx context.Context, channelID, content string, kind domain.MessageKind, codeLanguage string) (*domain.Message, error) {
	if errs := validator.ValidateMessage(content, kind, codeLanguage); errs.HasErrors() {
		return nil, errs
	}

	localID := r.appendOptimistic("", channelID, content, kind, codeLanguage)

	msg, err := r.api.SendChannelMessage(ctx, channelID, api.SendMessageInput{
		Content:      content,
		Kind:         kind,
		CodeLanguage: codeLanguage,
	})
	if err != nil {
		return nil, fmt.Errorf("sending channel message: %w", err)
	}
	if msg.ChannelID == "" {
		msg.ChannelID = channelID
	}

	r.confirmSend(msg.ThreadID(), localID, *msg)
	return msg, nil
}

// JoinChannel performs the durable membership change, then joins the
// realtime room and refreshes the channel list. If the durable write fails
// the room state is left untouched.
func (r *Repository) JoinChannel(ctx context.Context, channelID string) error {
	if err := r.api.JoinChannel(ctx, channelID); err != nil {
		return fmt.Errorf("joining channel: %w", err)
	}
	r.conn.JoinChannelRoom(channelID)
	if err := r.FetchChannels(ctx); err != nil {
		log.Printf("sync: channel refresh after join: %v", err)
	}
	return nil
}

// LeaveChannel mirrors JoinChannel.
func (r *Repository) LeaveChannel(ctx context.Context, channelID string) error {
	if err := r.api.LeaveChannel(ctx, channelID); err != nil {
		return fmt.Errorf("leaving channel: %w", err)
	}
	r.conn.LeaveChannelRoom(channelID)
	if err := r.FetchChannels(ctx); err != nil {
		log.Printf("sync: channel refresh after leave: %v", err)
	}
	return nil
}

// SearchUsers queries the directory by username or display name.
func (r *Repository) SearchUsers(ctx context.Context, query string) ([]domain.User, error) {
	return r.api.SearchUsers(ctx, query)
}

// ToggleReaction flips an emoji reaction on a message. messageType is "dm"
// or "channel".
func (r *Repository) ToggleReaction(ctx context.Context, messageID, emoji, messageType string) error {
	return r.api.ToggleReaction(ctx, messageID, emoji, messageType)
}

// UpdateStatus changes the current user's presence status.
func (r *Repository) UpdateStatus(ctx context.Context, status string) error {
	if errs := validator.ValidateStatus(status); errs.HasErrors() {
		return errs
	}
	if err := r.api.UpdateStatus(ctx, status); err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	r.currentUser.Update(func(u *domain.User) *domain.User {
		if u == nil {
			return nil
		}
		copied := *u
		copied.Status = status
		return &copied
	})
	return nil
}

// SendTyping forwards a composing signal over the realtime connection.
// Fire-and-forget.
func (r *Repository) SendTyping(isTyping bool, recipientID, channelID string) {
	r.conn.SendTyping(isTyping, recipientID, channelID)
}

// MarkRead tells the server the current user has read a conversation and
// zeroes its local unread count.
func (r *Repository) MarkRead(conversationID, senderID string) {
	r.conn.MarkAsRead(conversationID, senderID)
	r.conversations.Update(func(convs []domain.Conversation) []domain.Conversation {
		out := make([]domain.Conversation, len(convs))
		copy(out, convs)
		for i := range out {
			if out[i].ID == conversationID {
				out[i].UnreadCount = 0
			}
		}
		return out
	})
}

// Logout ends the session: best-effort server logout, then unconditionally
// disconnect, clear the stored credential, and empty every in-memory
// collection so nothing leaks into a later login.
func (r *Repository) Logout(ctx context.Context) {
	if err := r.api.Logout(ctx); err != nil {
		log.Printf("sync: logout request: %v", err)
	}

	r.conn.Disconnect()
	if err := r.session.Clear(); err != nil {
		log.Printf("sync: clearing session: %v", err)
	}

	r.currentUser.Set(nil)
	r.users.Set(nil)
	r.conversations.Set(nil)
	r.channels.Set(nil)
	r.clearEphemeral()

	r.mu.Lock()
	for _, th := range r.threads {
		th.Set(nil)
	}
	r.threads = make(map[string]*watch.Value[[]domain.Message])
	r.convByRecipient = make(map[string]string)
	r.activeGen = uuid.Nil
	r.mu.Unlock()
}

// --- push event application ---

func (r *Repository) apply(ev realtime.Event) {
	switch ev := ev.(type) {
	case *realtime.DirectMessage:
		r.thread(ev.Message.ThreadID()).Update(func(seq []domain.Message) []domain.Message {
			return MergeMessage(seq, ev.Message)
		})
		r.touchConversation(ev.Message, true)

	case *realtime.ChannelMessage:
		r.thread(ev.Message.ChannelID).Update(func(seq []domain.Message) []domain.Message {
			return MergeMessage(seq, ev.Message)
		})

	case *realtime.OnlineUsers:
		r.mu.Lock()
		stale := ev.Seq != 0 && ev.Seq <= r.lastPresence
		if !stale {
			r.lastPresence = ev.Seq
		}
		r.mu.Unlock()
		if stale {
			return
		}
		r.presence.Set(ev.Users)
		r.users.Update(func(users []domain.User) []domain.User {
			return applyPresence(users, ev.Users)
		})

	case *realtime.UserTyping:
		senderID := ev.SenderID
		if ev.IsTyping {
			info := domain.TypingInfo{
				ChannelID:   ev.ChannelID,
				RecipientID: ev.RecipientID,
				ExpiresAt:   time.Now().Add(r.typingTTL),
			}
			r.typing.Update(func(m map[string]domain.TypingInfo) map[string]domain.TypingInfo {
				out := cloneTyping(m)
				out[senderID] = info
				return out
			})
		} else {
			r.typing.Update(func(m map[string]domain.TypingInfo) map[string]domain.TypingInfo {
				out := cloneTyping(m)
				delete(out, senderID)
				return out
			})
		}

	case *realtime.MessagesRead:
		readerID := ev.ReaderID
		r.thread(ev.ConversationID).Update(func(seq []domain.Message) []domain.Message {
			return markConversationRead(seq, readerID)
		})

	case *realtime.ConnectionDown:
		r.clearEphemeral()
	}
}

// touchConversation refreshes the preview, activity time, and unread count
// of the conversation a message belongs to.
func (r *Repository) touchConversation(msg domain.Message, incoming bool) {
	if msg.ConversationID == "" {
		return
	}
	meID := r.currentUserID()
	r.conversations.Update(func(convs []domain.Conversation) []domain.Conversation {
		out := make([]domain.Conversation, len(convs))
		copy(out, convs)
		for i := range out {
			if out[i].ID != msg.ConversationID {
				continue
			}
			out[i].LastMessage = msg.Content
			if !msg.CreatedAt.IsZero() {
				t := msg.CreatedAt
				out[i].LastActivityAt = &t
			}
			if incoming && msg.SenderID != meID {
				out[i].UnreadCount++
			}
		}
		return out
	})
}

func (r *Repository) clearEphemeral() {
	r.presence.Set(nil)
	r.typing.Set(map[string]domain.TypingInfo{})
	r.mu.Lock()
	r.lastPresence = 0
	r.mu.Unlock()
}

func (r *Repository) expireTyping(now time.Time) {
	current := r.typing.Get()
	expired := false
	for _, info := range current {
		if info.ExpiresAt.Before(now) {
			expired = true
			break
		}
	}
	if !expired {
		return
	}
	r.typing.Update(func(m map[string]domain.TypingInfo) map[string]domain.TypingInfo {
		out := make(map[string]domain.TypingInfo, len(m))
		for id, info := range m {
			if !info.ExpiresAt.Before(now) {
				out[id] = info
			}
		}
		return out
	})
}

// --- helpers ---

func (r *Repository) thread(id string) *watch.Value[[]domain.Message] {
	r.mu.Lock()
	defer r.mu.Unlock()
	th, ok := r.threads[id]
	if !ok {
		th = watch.NewValue[[]domain.Message](nil)
		r.threads[id] = th
	}
	return th
}

// setActive records a new active thread selection and returns its tag.
// In-flight loads compare their tag against the current one before
// delivering results.
func (r *Repository) setActive() uuid.UUID {
	gen := uuid.New()
	r.mu.Lock()
	r.activeGen = gen
	r.mu.Unlock()
	return gen
}

func (r *Repository) appendOptimistic(conversationID, channelID, content string, kind domain.MessageKind, codeLanguage string) string {
	local := domain.Message{
		ID:             "local-" + uuid.NewString(),
		ConversationID: conversationID,
		ChannelID:      channelID,
		SenderID:       r.currentUserID(),
		Content:        content,
		Kind:           kind,
		CodeLanguage:   codeLanguage,
		CreatedAt:      time.Now(),
		Pending:        true,
	}
	r.thread(local.ThreadID()).Update(func(seq []domain.Message) []domain.Message {
		return MergeMessage(seq, local)
	})
	return local.ID
}

// confirmSend retires the optimistic entry and merges the confirmed
// message. Idempotent against the push copy arriving first, later, or not
// at all.
func (r *Repository) confirmSend(threadID, localID string, msg domain.Message) {
	if threadID == "" {
		return
	}
	r.thread(threadID).Update(func(seq []domain.Message) []domain.Message {
		if localID != "" {
			seq = RemoveMessage(seq, localID)
		}
		return MergeMessage(seq, msg)
	})
}

func (r *Repository) currentUserID() string {
	if u := r.currentUser.Get(); u != nil {
		return u.ID
	}
	if id, err := r.session.UserID(); err == nil {
		return id
	}
	return ""
}

func cloneTyping(m map[string]domain.TypingInfo) map[string]domain.TypingInfo {
	out := make(map[string]domain.TypingInfo, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
