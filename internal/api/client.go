// Package api is the typed request/response client for the AlphaChat-V2
// backend. Every call attaches the stored session cookie and makes exactly
// one attempt; the result is classified by the error taxonomy in domain.
// Retries are the caller's decision.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/alphachat/alphachat-go/internal/config"
	"github.com/alphachat/alphachat-go/internal/domain"
	"github.com/alphachat/alphachat-go/internal/session"
)

type Client struct {
	http    *http.Client
	baseURL string
	session *session.Store
}

// NewClient builds a client against cfg.BaseURL. The timeout is generous:
// the backend runs on a free tier and may cold-start.
func NewClient(cfg *config.Config, sess *session.Store) *Client {
	return &Client{
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		baseURL: cfg.BaseURL,
		session: sess,
	}
}

// CheckAuth asks the backend whether the stored credential is still valid
// and returns the authenticated user.
func (c *Client) CheckAuth(ctx context.Context) (*domain.User, error) {
	var out struct {
		IsAuthenticated bool         `json:"isAuthenticated"`
		User            *domain.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/check", nil, nil, &out); err != nil {
		return nil, err
	}
	if !out.IsAuthenticated || out.User == nil {
		return nil, domain.ErrUnauthenticated
	}
	return out.User, nil
}

// CurrentUser fetches the full record of the authenticated user.
func (c *Client) CurrentUser(ctx context.Context) (*domain.User, error) {
	var out struct {
		Success bool         `json:"success"`
		User    *domain.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, nil, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, domain.ErrUnauthenticated
	}
	return out.User, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil)
}

func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	var out struct {
		Success bool          `json:"success"`
		Users   []domain.User `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *Client) OnlineUsers(ctx context.Context) ([]domain.User, error) {
	var out struct {
		Success bool          `json:"success"`
		Count   int           `json:"count"`
		Users   []domain.User `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/users/online", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *Client) SearchUsers(ctx context.Context, query string) ([]domain.User, error) {
	var out struct {
		Success bool          `json:"success"`
		Users   []domain.User `json:"users"`
	}
	q := url.Values{"q": {query}}
	if err := c.do(ctx, http.MethodGet, "/api/users/search", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// TeamMembers returns the cofounder and core-team user lists.
func (c *Client) TeamMembers(ctx context.Context) (cofounders, coreTeam []domain.User, err error) {
	var out struct {
		Success    bool          `json:"success"`
		Cofounders []domain.User `json:"cofounders"`
		CoreTeam   []domain.User `json:"coreTeam"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/users/team", nil, nil, &out); err != nil {
		return nil, nil, err
	}
	return out.Cofounders, out.CoreTeam, nil
}

func (c *Client) UserProfile(ctx context.Context, username string) (*domain.User, error) {
	var out struct {
		Success bool         `json:"success"`
		User    *domain.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(username), nil, nil, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, domain.ErrNotFound
	}
	return out.User, nil
}

// UpdateStatus sets the current user's presence status (online, offline,
// away, busy).
func (c *Client) UpdateStatus(ctx context.Context, status string) error {
	body := map[string]string{"status": status}
	return c.do(ctx, http.MethodPatch, "/api/users/status", nil, body, nil)
}

func (c *Client) ListChannels(ctx context.Context) ([]domain.Channel, error) {
	var out struct {
		Success  bool             `json:"success"`
		Channels []domain.Channel `json:"channels"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/channels", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Channels, nil
}

// GetChannel fetches a channel by slug with one page of its messages.
func (c *Client) GetChannel(ctx context.Context, slug string, page, limit int) (*domain.ChannelDetail, error) {
	var out struct {
		Success bool `json:"success"`
		domain.ChannelDetail
	}
	q := pageQuery(page, limit)
	if err := c.do(ctx, http.MethodGet, "/api/channels/"+url.PathEscape(slug), q, nil, &out); err != nil {
		return nil, err
	}
	return &out.ChannelDetail, nil
}

func (c *Client) JoinChannel(ctx context.Context, channelID string) error {
	return c.do(ctx, http.MethodPost, "/api/channels/"+url.PathEscape(channelID)+"/join", nil, nil, nil)
}

func (c *Client) LeaveChannel(ctx context.Context, channelID string) error {
	return c.do(ctx, http.MethodPost, "/api/channels/"+url.PathEscape(channelID)+"/leave", nil, nil, nil)
}

func (c *Client) Conversations(ctx context.Context) ([]domain.Conversation, error) {
	var out struct {
		Success       bool                  `json:"success"`
		Conversations []domain.Conversation `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/messages/dm/conversations", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// GetConversation fetches one page of the thread with recipientID,
// creating the conversation server-side if it does not exist yet.
func (c *Client) GetConversation(ctx context.Context, recipientID string, page, limit int) (*domain.ConversationDetail, error) {
	var out struct {
		Success bool `json:"success"`
		domain.ConversationDetail
	}
	q := pageQuery(page, limit)
	if err := c.do(ctx, http.MethodGet, "/api/messages/dm/"+url.PathEscape(recipientID), q, nil, &out); err != nil {
		return nil, err
	}
	return &out.ConversationDetail, nil
}

// SendMessageInput is the body of both message-send endpoints.
type SendMessageInput struct {
	Content      string             `json:"content"`
	Kind         domain.MessageKind `json:"messageType"`
	CodeLanguage string             `json:"codeLanguage,omitempty"`
}

func (c *Client) SendDirectMessage(ctx context.Context, recipientID string, in SendMessageInput) (*domain.Message, error) {
	var out struct {
		Success     bool            `json:"success"`
		MessageData *domain.Message `json:"messageData"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/messages/dm/"+url.PathEscape(recipientID), nil, in, &out); err != nil {
		return nil, err
	}
	if out.MessageData == nil {
		return nil, fmt.Errorf("send response missing message: %w", domain.ErrMalformedPayload)
	}
	return out.MessageData, nil
}

func (c *Client) SendChannelMessage(ctx context.Context, channelID string, in SendMessageInput) (*domain.Message, error) {
	var out struct {
		Success bool            `json:"success"`
		Message *domain.Message `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/messages/channel/"+url.PathEscape(channelID), nil, in, &out); err != nil {
		return nil, err
	}
	if out.Message == nil {
		return nil, fmt.Errorf("send response missing message: %w", domain.ErrMalformedPayload)
	}
	return out.Message, nil
}

// ToggleReaction adds or removes an emoji reaction. messageType is "dm" or
// "channel".
func (c *Client) ToggleReaction(ctx context.Context, messageID, emoji, messageType string) error {
	body := map[string]string{"emoji": emoji, "messageType": messageType}
	return c.do(ctx, http.MethodPatch, "/api/messages/reaction/"+url.PathEscape(messageID), nil, body, nil)
}

func pageQuery(page, limit int) url.Values {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return url.Values{
		"page":  {strconv.Itoa(page)},
		"limit": {strconv.Itoa(limit)},
	}
}

// do runs one request and classifies the outcome. It fails locally with
// ErrUnauthenticated when no usable credential is stored.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	cred, err := c.session.Credential()
	if err != nil {
		return fmt.Errorf("reading credential: %w", err)
	}
	if cred == "" || session.Expired(cred) {
		return domain.ErrUnauthenticated
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Cookie", cred)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if err := classify(resp); err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, domain.ErrMalformedPayload)
	}
	return nil
}

func classify(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.ErrUnauthenticated
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	default:
		var body struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return &domain.ServerError{Status: resp.StatusCode, Message: body.Message}
	}
}
