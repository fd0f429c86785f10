package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventDispatch          EventType = "dispatch"
	EventOutcome           EventType = "outcome"
	EventSubscriptionState EventType = "subscription_state"
	EventValue             EventType = "value"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// DispatchEvent is emitted when a request is handed to the host.
type DispatchEvent struct {
	EventBase
	Kind   OperationKind `json:"kind"`
	Target string        `json:"target"`
}

// OutcomeEvent is emitted when the host notifies the outcome of a dispatched request.
type OutcomeEvent struct {
	EventBase
	Kind     OperationKind `json:"kind"`
	Target   string        `json:"target"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
	// Abandoned is true when the caller stopped waiting before the outcome arrived.
	Abandoned bool `json:"abandoned,omitempty"`
}

// SubscriptionEvent is emitted on every state transition of a subscription.
type SubscriptionEvent struct {
	EventBase
	SubscriptionID string `json:"subscription_id"`
	Name           string `json:"name,omitempty"`
	From           string `json:"from"`
	To             string `json:"to"`
	Reason         string `json:"reason,omitempty"`
}

// ValueEvent is emitted for each value a producer publishes.
type ValueEvent struct {
	EventBase
	SubscriptionID string `json:"subscription_id"`
	Name           string `json:"name,omitempty"`
	Suppressed     bool   `json:"suppressed,omitempty"`
}

// LifecycleHooks defines callbacks for bridge observability.
// Hooks run synchronously on the goroutine that produced the event and must not block.
type LifecycleHooks struct {
	OnDispatch          func(context.Context, *DispatchEvent)
	OnOutcome           func(context.Context, *OutcomeEvent)
	OnSubscriptionState func(context.Context, *SubscriptionEvent)
	OnValue             func(context.Context, *ValueEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnDispatch:          chain(h.OnDispatch, other.OnDispatch),
		OnOutcome:           chain(h.OnOutcome, other.OnOutcome),
		OnSubscriptionState: chain(h.OnSubscriptionState, other.OnSubscriptionState),
		OnValue:             chain(h.OnValue, other.OnValue),
	}
}

func chain[E any](a, b func(context.Context, *E)) func(context.Context, *E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *E) {
		a(ctx, e)
		b(ctx, e)
	}
}

// Target returns a short description of what a request touches (url or path).
func Target(req Request) string {
	switch r := req.(type) {
	case NetworkRequest:
		return r.Method + " " + r.URL
	case FileReadRequest:
		return r.Path
	case FileWriteRequest:
		return r.Path
	}
	return ""
}
