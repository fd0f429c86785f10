package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/opbridge/internal/logging"
	"github.com/aretw0/opbridge/pkg/domain"
)

// EventHub fans lifecycle events out to SSE clients.
type EventHub struct {
	mu          sync.RWMutex
	subscribers map[chan string]struct{}
	buffer      int
	logger      *slog.Logger
}

func NewEventHub(logger *slog.Logger) *EventHub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &EventHub{
		subscribers: make(map[chan string]struct{}),
		buffer:      16,
		logger:      logger,
	}
}

// Subscribe registers a client. The returned function unregisters it and closes the channel.
func (h *EventHub) Subscribe() (<-chan string, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan string, h.buffer)
	h.subscribers[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers, ch)
			close(ch)
		})
	}
}

// Broadcast sends msg to every client. Slow clients lose messages instead of blocking the
// producer.
func (h *EventHub) Broadcast(msg string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers {
		select {
		case ch <- msg:
		default:
			h.logger.Warn("SSE: client buffer full, dropping event")
		}
	}
}

// Hooks returns lifecycle hooks publishing every event as JSON.
func (h *EventHub) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDispatch:          func(_ context.Context, e *domain.DispatchEvent) { h.publish(e) },
		OnOutcome:           func(_ context.Context, e *domain.OutcomeEvent) { h.publish(e) },
		OnSubscriptionState: func(_ context.Context, e *domain.SubscriptionEvent) { h.publish(e) },
	}
}

func (h *EventHub) publish(event any) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Debug("event encode failed", "err", err)
		return
	}
	h.Broadcast(string(data))
}
