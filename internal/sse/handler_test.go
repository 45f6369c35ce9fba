package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
)

type staticChannels map[string]string

func (s staticChannels) Lookup(_ context.Context, userID string) (*domain.DeliveryChannel, error) {
	token, ok := s[userID]
	if !ok {
		return nil, nil
	}
	return &domain.DeliveryChannel{UserID: userID, Token: token, Platform: domain.PlatformWeb}, nil
}

func headerUser(r *http.Request) (string, bool) {
	uid := r.Header.Get("X-User-ID")
	return uid, uid != ""
}

// readEvent reads one "id/event/data" frame and decodes its payload.
func readEvent(t *testing.T, r *bufio.Reader) Event {
	t.Helper()
	var event Event
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			return event
		}
		if payload, ok := strings.CutPrefix(line, "data: "); ok {
			require.NoError(t, json.Unmarshal([]byte(payload), &event))
		}
	}
}

func TestHandler_StreamsNotifications(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := httptest.NewServer(NewHandler(hub, staticChannels{"user-1": "tok-1"}, headerUser, nil))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("X-User-ID", "user-1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	assert.Equal(t, EventConnected, readEvent(t, r).Type)

	require.NoError(t, hub.Send(context.Background(), "tok-1", "Hello", "World", map[string]string{"type": "nudge"}))

	got := readEvent(t, r)
	assert.Equal(t, EventNotification, got.Type)
	assert.Equal(t, "Hello", got.Title)
	assert.Equal(t, "World", got.Body)
	assert.NotEmpty(t, got.MessageID)
}

func TestHandler_Rejections(t *testing.T) {
	hub := NewHub(nil, nil)
	h := NewHandler(hub, staticChannels{"user-1": "tok-1"}, headerUser, nil)

	tests := []struct {
		name   string
		method string
		user   string
		want   int
	}{
		{"wrong method", http.MethodPost, "user-1", http.StatusMethodNotAllowed},
		{"anonymous", http.MethodGet, "", http.StatusUnauthorized},
		{"no channel", http.MethodGet, "user-2", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/events", nil)
			if tt.user != "" {
				req.Header.Set("X-User-ID", tt.user)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	assert.Equal(t, 0, hub.ClientCount())
}
