// Package realtime maintains the bidirectional event stream with the
// backend: at most one live websocket per authenticated user, a retrying
// connect sequence, and tagged decoding of push events.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/alphachat/alphachat-go/internal/config"
	"github.com/alphachat/alphachat-go/internal/session"
	"github.com/alphachat/alphachat-go/pkg/watch"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 16
	eventBufSize   = 256
)

// transport is the minimal surface of a websocket the connection needs;
// tests substitute a fake.
type transport interface {
	Read(ctx context.Context, v any) error
	Write(ctx context.Context, v any) error
	Close() error
}

type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) Read(ctx context.Context, v any) error {
	return wsjson.Read(ctx, t.conn, v)
}

func (t *wsTransport) Write(ctx context.Context, v any) error {
	return wsjson.Write(ctx, t.conn, v)
}

func (t *wsTransport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "")
}

type dialFunc func(ctx context.Context, url string, header http.Header) (transport, error)

func dialWebsocket(ctx context.Context, url string, header http.Header) (transport, error) {
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(maxMessageSize)
	return &wsTransport{conn: conn}, nil
}

// Conn manages the single realtime connection for the logged-in user. Only
// the sync repository calls Connect and Disconnect; everything else
// observes State or consumes Events.
type Conn struct {
	url            string
	session        *session.Store
	dial           dialFunc
	maxAttempts    int
	retryDelay     time.Duration
	connectTimeout time.Duration

	mu         sync.Mutex
	tr         transport
	userID     string
	gen        int // bumped on every teardown so stale read loops stand down
	cancelRead context.CancelFunc

	state       *watch.Value[State]
	events      chan Event
	presenceSeq atomic.Uint64
}

func NewConn(cfg *config.Config, sess *session.Store) *Conn {
	return &Conn{
		url:            cfg.SocketURL,
		session:        sess,
		dial:           dialWebsocket,
		maxAttempts:    cfg.RetryAttempts,
		retryDelay:     cfg.RetryDelay,
		connectTimeout: cfg.ConnectTimeout,
		state:          watch.NewValue(StateDisconnected),
		events:         make(chan Event, eventBufSize),
	}
}

// State is the observable connection state.
func (c *Conn) State() *watch.Value[State] { return c.state }

// Events carries every decoded push event, in arrival order.
func (c *Conn) Events() <-chan Event { return c.events }

// Connect opens the stream for userID and emits the join event so the
// server associates it. Idempotent: a second call for the same user while
// connected is a no-op; a call for a different user tears the old stream
// down first. After the retry budget is exhausted the state is Error and
// another explicit Connect is required.
func (c *Conn) Connect(ctx context.Context, userID string) error {
	c.mu.Lock()
	if c.tr != nil && c.userID == userID && c.state.Get() == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.teardownLocked()
	c.userID = userID
	c.state.Set(StateConnecting)
	gen := c.gen
	c.mu.Unlock()

	return c.connect(ctx, gen, userID)
}

// connect runs the attempt loop without holding c.mu, so emits and
// Disconnect stay responsive while a connection is being established. The
// sequence installs nothing once gen has been superseded by a newer
// Connect or a Disconnect.
func (c *Conn) connect(ctx context.Context, gen int, userID string) error {
	header := http.Header{}
	if cred, err := c.session.Credential(); err == nil && cred != "" {
		header.Set("Cookie", cred)
	}

	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	var lastErr error
	for attempt := 1; ; attempt++ {
		tr, err := c.dial(ctx, c.url, header)
		if err == nil {
			err = tr.Write(ctx, Envelope{Event: EventJoin, Data: encode(userID)})
			if err == nil {
				c.mu.Lock()
				if c.gen != gen {
					c.mu.Unlock()
					tr.Close()
					return nil
				}
				c.tr = tr
				c.gen++
				readGen := c.gen
				readCtx, cancelRead := context.WithCancel(context.Background())
				c.cancelRead = cancelRead
				c.state.Set(StateConnected)
				c.mu.Unlock()
				go c.readLoop(readCtx, tr, readGen)
				return nil
			}
			tr.Close()
		}
		lastErr = err

		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			c.failIfCurrent(gen)
			return fmt.Errorf("connect timed out after %d attempts: %w", attempt, lastErr)
		case <-time.After(c.retryDelay * time.Duration(attempt)):
		}
		if c.superseded(gen) {
			return nil
		}
	}

	c.failIfCurrent(gen)
	return fmt.Errorf("connect failed after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *Conn) superseded(gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen != gen
}

// failIfCurrent reports the Error state unless a newer Connect or a
// Disconnect already took over.
func (c *Conn) failIfCurrent(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen {
		c.state.Set(StateError)
	}
}

// readLoop pulls frames off one transport until it fails or is superseded.
// A malformed payload is logged and dropped; it never ends the loop.
func (c *Conn) readLoop(ctx context.Context, tr transport, gen int) {
	for {
		var env Envelope
		if err := tr.Read(ctx, &env); err != nil {
			c.readFailed(ctx, gen, err)
			return
		}

		ev, err := DecodeEvent(env)
		if err != nil {
			log.Printf("ws: dropping event: %v", err)
			continue
		}
		if snapshot, ok := ev.(*OnlineUsers); ok {
			snapshot.Seq = c.presenceSeq.Add(1)
		}

		select {
		case c.events <- ev:
		default:
			log.Printf("ws: event buffer full, dropping %s", env.Event)
		}
	}
}

func (c *Conn) readFailed(ctx context.Context, gen int, err error) {
	c.mu.Lock()
	if c.gen != gen {
		// A newer connection or an explicit Disconnect superseded us.
		c.mu.Unlock()
		return
	}
	c.tr = nil
	c.cancelRead = nil
	userID := c.userID
	c.pushDown()

	if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		c.state.Set(StateDisconnected)
		c.mu.Unlock()
		return
	}
	c.state.Set(StateConnecting)
	c.mu.Unlock()

	log.Printf("ws: connection lost: %v", err)
	if cerr := c.connect(context.Background(), gen, userID); cerr != nil {
		log.Printf("ws: reconnect: %v", cerr)
	}
}

// Disconnect closes the transport if one exists and resets to
// Disconnected. Safe to call at any time, including before any Connect.
// Consumers holding presence or typing state reset it on observing the
// transition.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
	c.userID = ""
	c.state.Set(StateDisconnected)
}

// teardownLocked closes the current transport and invalidates its read
// loop. Caller holds c.mu.
func (c *Conn) teardownLocked() {
	if c.cancelRead != nil {
		c.cancelRead()
		c.cancelRead = nil
	}
	if c.tr != nil {
		c.tr.Close()
		c.tr = nil
		c.pushDown()
	}
	c.gen++
}

// pushDown injects a ConnectionDown marker into the event stream so
// consumers reset push-derived state in order with the events around it.
// Caller holds c.mu.
func (c *Conn) pushDown() {
	select {
	case c.events <- &ConnectionDown{}:
	default:
		log.Printf("ws: event buffer full, dropping connection marker")
	}
}

// JoinChannelRoom subscribes the stream to a channel's push events.
func (c *Conn) JoinChannelRoom(channelID string) {
	c.emit(EventJoinChannel, channelID)
}

// LeaveChannelRoom unsubscribes the stream from a channel.
func (c *Conn) LeaveChannelRoom(channelID string) {
	c.emit(EventLeaveChannel, channelID)
}

// SendTyping signals composing state for a DM counterpart or a channel.
// Fire-and-forget.
func (c *Conn) SendTyping(isTyping bool, recipientID, channelID string) {
	payload := map[string]any{"isTyping": isTyping}
	if recipientID != "" {
		payload["recipientId"] = recipientID
	}
	if channelID != "" {
		payload["channelId"] = channelID
	}
	c.emit(EventTyping, payload)
}

// MarkAsRead tells the server the current user has read a conversation.
// Fire-and-forget; a lost read receipt is not user-visible.
func (c *Conn) MarkAsRead(conversationID, senderID string) {
	c.emit(EventMarkAsRead, map[string]string{
		"conversationId": conversationID,
		"senderId":       senderID,
	})
}

func (c *Conn) emit(event string, data any) {
	c.mu.Lock()
	tr := c.tr
	c.mu.Unlock()
	if tr == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	if err := tr.Write(ctx, Envelope{Event: event, Data: encode(data)}); err != nil {
		log.Printf("ws: emit %s: %v", event, err)
	}
}

func encode(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("ws: encoding payload: %v", err)
		return nil
	}
	return data
}
