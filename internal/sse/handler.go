package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
)

// ChannelLookup resolves the channel a user registered.
type ChannelLookup interface {
	Lookup(ctx context.Context, userID string) (*domain.DeliveryChannel, error)
}

// UserResolver extracts the authenticated user from a request.
type UserResolver func(r *http.Request) (string, bool)

// Handler streams a user's notifications at GET /api/v1/events.
type Handler struct {
	hub       *Hub
	channels  ChannelLookup
	resolve   UserResolver
	heartbeat time.Duration
	logger    *slog.Logger
}

// NewHandler creates the stream handler.
func NewHandler(hub *Hub, channels ChannelLookup, resolve UserResolver, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		hub:       hub,
		channels:  channels,
		resolve:   resolve,
		heartbeat: 30 * time.Second,
		logger:    logger,
	}
}

// ServeHTTP handles one stream until the client goes away or the hub shuts
// down.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.resolve(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ch, err := h.channels.Lookup(r.Context(), userID)
	if err != nil {
		h.logger.Error("channel lookup failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}
	if ch == nil {
		http.Error(w, "No delivery channel registered", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	client, err := h.hub.Connect(userID, ch.Token)
	if err != nil {
		h.logger.Error("failed to register push client", slog.String("error", err.Error()))
		return
	}
	defer h.hub.Disconnect(client)

	log := h.logger.With(slog.String("client_id", client.ID))

	if err := h.write(w, rc, newEvent(EventConnected, "", "", map[string]string{"client_id": client.ID})); err != nil {
		log.Warn("failed to send connection message", slog.String("error", err.Error()))
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return
			}
			if err := h.write(w, rc, event); err != nil {
				log.Info("client disconnected during send")
				return
			}
		case <-ticker.C:
			if err := h.write(w, rc, newEvent(EventHeartbeat, "", "", nil)); err != nil {
				log.Info("client disconnected during heartbeat")
				return
			}
		case <-client.Done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Handler) write(w http.ResponseWriter, rc *http.ResponseController, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.MessageID, event.Type, payload); err != nil {
		return err
	}
	if err := rc.Flush(); err != nil {
		return err
	}
	if err := rc.SetWriteDeadline(time.Now().Add(2 * h.heartbeat)); err != nil {
		h.logger.Debug("failed to set write deadline", slog.String("error", err.Error()))
	}
	return nil
}
