package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alphachat/alphachat-go/internal/config"
	"github.com/alphachat/alphachat-go/internal/domain"
	"github.com/alphachat/alphachat-go/internal/session"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *session.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sess, err := session.Open(":memory:")
	if err != nil {
		t.Fatalf("opening session store: %v", err)
	}
	t.Cleanup(func() { sess.Close() })

	cfg := &config.Config{BaseURL: srv.URL, RequestTimeout: 5 * time.Second}
	return NewClient(cfg, sess), sess
}

func TestFailsFastWithoutCredential(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))

	_, err := client.ListUsers(context.Background())
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if hits.Load() != 0 {
		t.Errorf("request reached the network despite missing credential")
	}
}

func TestCredentialAttachedAsCookie(t *testing.T) {
	var gotCookie string
	client, sess := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		w.Write([]byte(`{"success": true, "users": []}`))
	}))
	sess.SaveCredential("alphachat.sid=abc123")

	if _, err := client.ListUsers(context.Background()); err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if gotCookie != "alphachat.sid=abc123" {
		t.Errorf("cookie = %q, want the stored credential", gotCookie)
	}
}

func TestCheckAuth(t *testing.T) {
	client, sess := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/check" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"isAuthenticated": true, "user": {"_id": "u1", "username": "ana"}}`))
	}))
	sess.SaveCredential("alphachat.sid=abc")

	user, err := client.CheckAuth(context.Background())
	if err != nil {
		t.Fatalf("CheckAuth: %v", err)
	}
	if user.ID != "u1" || user.Username != "ana" {
		t.Errorf("user = %+v", user)
	}
}

func TestCheckAuthRejected(t *testing.T) {
	client, sess := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"isAuthenticated": false}`))
	}))
	sess.SaveCredential("alphachat.sid=abc")

	_, err := client.CheckAuth(context.Background())
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name: "401 unauthenticated", status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, domain.ErrUnauthenticated) {
					t.Errorf("want ErrUnauthenticated, got %v", err)
				}
			},
		},
		{
			name: "404 not found", status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, domain.ErrNotFound) {
					t.Errorf("want ErrNotFound, got %v", err)
				}
			},
		},
		{
			name: "500 server rejected", status: http.StatusInternalServerError,
			body: `{"success": false, "message": "boom"}`,
			check: func(t *testing.T, err error) {
				var se *domain.ServerError
				if !errors.As(err, &se) {
					t.Fatalf("want ServerError, got %v", err)
				}
				if se.Status != 500 || se.Message != "boom" {
					t.Errorf("ServerError = %+v", se)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, sess := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			sess.SaveCredential("alphachat.sid=abc")

			_, err := client.ListUsers(context.Background())
			if err == nil {
				t.Fatal("expected an error")
			}
			tt.check(t, err)
		})
	}
}

func TestNetworkFailureClassified(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	sess, err := session.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()
	sess.SaveCredential("alphachat.sid=abc")

	cfg := &config.Config{BaseURL: srv.URL, RequestTimeout: 2 * time.Second}
	client := NewClient(cfg, sess)
	srv.Close() // connection refused from here on

	_, err = client.ListUsers(context.Background())
	var ne *domain.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestSendDirectMessage(t *testing.T) {
	client, sess := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/messages/dm/u2" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{
			"success": true,
			"messageData": {"_id": "m1", "conversation": "c1", "sender": "u1", "content": "hi", "messageType": "text"}
		}`))
	}))
	sess.SaveCredential("alphachat.sid=abc")

	msg, err := client.SendDirectMessage(context.Background(), "u2", SendMessageInput{Content: "hi", Kind: domain.KindText})
	if err != nil {
		t.Fatalf("SendDirectMessage: %v", err)
	}
	if msg.ID != "m1" || msg.ConversationID != "c1" {
		t.Errorf("message = %+v", msg)
	}
}

func TestGetConversationPaging(t *testing.T) {
	client, sess := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("limit") != "50" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(`{
			"success": true,
			"conversation": {"_id": "c1", "participants": ["u1", "u2"]},
			"messages": [{"_id": "m1", "conversation": "c1", "sender": "u2", "content": "x"}],
			"pagination": {"page": 2, "limit": 50, "hasMore": false}
		}`))
	}))
	sess.SaveCredential("alphachat.sid=abc")

	detail, err := client.GetConversation(context.Background(), "u2", 2, 0)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if detail.Conversation.ID != "c1" || len(detail.Messages) != 1 {
		t.Errorf("detail = %+v", detail)
	}
}

func TestMalformedResponse(t *testing.T) {
	client, sess := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	sess.SaveCredential("alphachat.sid=abc")

	_, err := client.ListChannels(context.Background())
	if !errors.Is(err, domain.ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}
