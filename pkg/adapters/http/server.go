package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/opbridge"
	"github.com/aretw0/opbridge/internal/logging"
	"github.com/aretw0/opbridge/pkg/domain"
	"github.com/aretw0/opbridge/pkg/stream"
	"github.com/go-chi/chi/v5"
)

// Bridge is the part of the bridge the admin API drives.
type Bridge interface {
	Dispatch(ctx context.Context, req domain.Request) (domain.Outcome, error)
	Kinds() domain.KindSet
	Streams() *stream.Manager
}

// Server serves the admin API.
type Server struct {
	Bridge  Bridge
	Events  *EventHub
	Metrics http.Handler
	logger  *slog.Logger
}

// AdminOption configures the admin handler.
type AdminOption func(*Server)

// WithMetrics mounts h at GET /metrics.
func WithMetrics(h http.Handler) AdminOption {
	return func(s *Server) {
		s.Metrics = h
	}
}

// WithEvents streams hub at GET /events.
func WithEvents(hub *EventHub) AdminOption {
	return func(s *Server) {
		s.Events = hub
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) AdminOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewAdminHandler creates the HTTP handler of the admin API.
func NewAdminHandler(bridge Bridge, opts ...AdminOption) http.Handler {
	server := &Server{Bridge: bridge, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)
	r.Post("/dispatch/{kind}", server.Dispatch)
	r.Route("/subscriptions", func(r chi.Router) {
		r.Get("/", server.ListSubscriptions)
		r.Get("/{id}", server.GetSubscription)
		r.Delete("/{id}", server.CancelSubscription)
	})
	if server.Events != nil {
		r.Get("/events", server.SubscribeEvents)
	}
	if server.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", server.Metrics)
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"app":           "opbridge-admin",
		"version":       strings.TrimSpace(opbridge.Version),
		"kinds":         s.Bridge.Kinds().Slice(),
		"subscriptions": s.Bridge.Streams().Len(),
	})
}

// Dispatch handles POST /dispatch/{kind}. The body is a JSON object with the request fields
// (method, url, headers, body, path, contents, strategy). The response is the outcome.
func (s *Server) Dispatch(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("Dispatch: invalid request body", "err", err)
		return
	}
	req, err := domain.DecodeRequest(kind, fields)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	outcome, err := s.Bridge.Dispatch(r.Context(), req)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, outcome)
	case errors.Is(err, domain.ErrUnsupportedKind):
		http.Error(w, err.Error(), http.StatusNotImplemented)
	case errors.Is(err, domain.ErrInvalidRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
	default:
		http.Error(w, fmt.Sprintf("Dispatch error: %v", err), http.StatusBadGateway)
		s.logger.Error("Dispatch failed", "kind", kind.String(), "err", err)
	}
}

// ListSubscriptions handles GET /subscriptions.
func (s *Server) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Bridge.Streams().List())
}

// GetSubscription handles GET /subscriptions/{id}.
func (s *Server) GetSubscription(w http.ResponseWriter, r *http.Request) {
	info, err := s.Bridge.Streams().Get(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

// CancelSubscription handles DELETE /subscriptions/{id}.
func (s *Server) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Bridge.Streams().Cancel(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.logger.Info("subscription cancelled via admin API", "subscription_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// SubscribeEvents handles GET /events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Events.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
