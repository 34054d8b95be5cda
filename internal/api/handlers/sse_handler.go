package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
	"github.com/zatekoja/mindcare-directory/internal/domain/providers"
	"github.com/zatekoja/mindcare-directory/internal/infrastructure/observability"
)

// SSEHandler streams a patient's own booking and contact events
type SSEHandler struct {
	eventBus  providers.EventBus
	heartbeat time.Duration

	mu      sync.Mutex
	clients int
}

// NewSSEHandler creates a new SSE handler; a nil bus disables streaming
func NewSSEHandler(eventBus providers.EventBus) *SSEHandler {
	return &SSEHandler{eventBus: eventBus, heartbeat: 30 * time.Second}
}

// StreamUserEvents handles GET /api/events
func (h *SSEHandler) StreamUserEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if h.eventBus == nil {
		respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	logger := observability.LoggerFromContext(ctx)

	// Events are published on shared channels and filtered per connection
	clientChan := make(chan *entities.DomainEvent, 16)
	for _, channel := range []string{providers.EventChannelBookings, providers.EventChannelContacts} {
		eventChan, err := h.eventBus.Subscribe(ctx, channel)
		if err != nil {
			logger.Error().Err(err).Str("channel", channel).Msg("failed to subscribe")
			respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
			return
		}
		go forwardUserEvents(ctx, userID, eventChan, clientChan)
	}

	rc := http.NewResponseController(w)
	// the server write timeout would otherwise cut the stream
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	h.track(1)
	defer h.track(-1)

	sendEvent(w, "connected", "", map[string]interface{}{"user_id": userID, "timestamp": time.Now()})
	if err := rc.Flush(); err != nil {
		logger.Warn().Err(err).Msg("streaming not supported")
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sendEvent(w, "heartbeat", "", map[string]interface{}{"timestamp": time.Now()})
		case event := <-clientChan:
			sendEvent(w, string(event.Type), event.ID, event)
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// ClientCount returns the number of open streams
func (h *SSEHandler) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clients
}

func (h *SSEHandler) track(delta int) {
	h.mu.Lock()
	h.clients += delta
	h.mu.Unlock()
}

func forwardUserEvents(ctx context.Context, userID string, eventChan <-chan *entities.DomainEvent, clientChan chan<- *entities.DomainEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil || event.UserID != userID {
				continue
			}
			select {
			case clientChan <- event:
			default:
				// slow client, drop
			}
		}
	}
}

func sendEvent(w http.ResponseWriter, eventType, id string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\n", eventType)
	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}
