package sse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/anjalik1505/town-functions-sub003/internal/id"
	"github.com/anjalik1505/town-functions-sub003/internal/ratelimit"
)

var (
	// ErrChannelOffline is returned when no client holds the token.
	ErrChannelOffline = errors.New("channel offline")
	// ErrHubClosed is returned after Shutdown.
	ErrHubClosed = errors.New("hub closed")
)

// Client is one open stream.
type Client struct {
	ID          string
	UserID      string
	Token       string
	ConnectedAt time.Time
	Events      chan Event
	Done        chan struct{}
}

// Hub routes messages to the clients connected under a channel token. It
// implements the nudge transport.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[string]*Client // token -> client id -> client
	closed  bool

	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger
}

// NewHub creates a hub. limiter may be nil to disable per-token limiting.
func NewHub(limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		clients: make(map[string]map[string]*Client),
		limiter: limiter,
		logger:  logger,
	}
}

// Connect registers a stream for token.
func (h *Hub) Connect(userID, token string) (*Client, error) {
	clientID, err := id.Generate(id.PrefixConnection)
	if err != nil {
		return nil, err
	}
	client := &Client{
		ID:          clientID,
		UserID:      userID,
		Token:       token,
		ConnectedAt: time.Now(),
		Events:      make(chan Event, 32),
		Done:        make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	if h.clients[token] == nil {
		h.clients[token] = make(map[string]*Client)
	}
	h.clients[token][clientID] = client
	total := h.countLocked()
	h.mu.Unlock()

	h.logger.Info("push client connected",
		slog.String("client_id", clientID),
		slog.String("user_id", userID),
		slog.Int("total_clients", total))
	return client, nil
}

// Disconnect removes a client and closes its channels. Unknown clients are
// ignored.
func (h *Hub) Disconnect(client *Client) {
	h.mu.Lock()
	conns, ok := h.clients[client.Token]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := conns[client.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(conns, client.ID)
	if len(conns) == 0 {
		delete(h.clients, client.Token)
	}
	h.mu.Unlock()

	close(client.Done)
	close(client.Events)

	h.logger.Info("push client disconnected",
		slog.String("client_id", client.ID),
		slog.Duration("duration", time.Since(client.ConnectedAt)))
}

// Send delivers a visible notification to every client holding token.
func (h *Hub) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	return h.deliver(ctx, token, newEvent(EventNotification, title, body, data))
}

// SendSilent delivers a data-only message.
func (h *Hub) SendSilent(ctx context.Context, token string, data map[string]string) error {
	return h.deliver(ctx, token, newEvent(EventSilent, "", "", data))
}

func (h *Hub) deliver(ctx context.Context, token string, event Event) error {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx, token); err != nil {
			return fmt.Errorf("rate limited: %w", err)
		}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrHubClosed
	}
	conns := h.clients[token]
	if len(conns) == 0 {
		return ErrChannelOffline
	}

	var delivered int
	for _, c := range conns {
		select {
		case c.Events <- event:
			delivered++
		default:
			h.logger.Warn("dropped push for slow client",
				slog.String("client_id", c.ID),
				slog.String("message_id", event.MessageID))
		}
	}
	if delivered == 0 {
		return fmt.Errorf("all %d clients busy: %w", len(conns), ErrChannelOffline)
	}
	return nil
}

// ClientCount returns the number of open streams.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.countLocked()
}

func (h *Hub) countLocked() int {
	var n int
	for _, conns := range h.clients {
		n += len(conns)
	}
	return n
}

// Shutdown closes every stream and rejects further sends.
func (h *Hub) Shutdown(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for _, conns := range h.clients {
		for _, c := range conns {
			close(c.Done)
			close(c.Events)
		}
	}
	h.clients = make(map[string]map[string]*Client)
	h.logger.Info("push hub shut down")
	return nil
}
