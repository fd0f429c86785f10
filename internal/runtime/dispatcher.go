package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aretw0/opbridge/internal/logging"
	"github.com/aretw0/opbridge/pkg/domain"
	"github.com/aretw0/opbridge/pkg/ports"
)

// Dispatcher issues one-shot requests to the host executor and matches every request to
// its own listener. It performs no I/O itself and holds no lock across the host boundary.
type Dispatcher struct {
	executor ports.Executor
	kinds    domain.KindSet
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) DispatcherOption {
	return func(d *Dispatcher) {
		d.hooks = hooks
	}
}

// NewDispatcher creates a dispatcher for the given host executor.
// The executor's supported kinds are queried once, here.
func NewDispatcher(executor ports.Executor, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		executor: executor,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.kinds = domain.NewKindSet().Union(executor.SupportedKinds())
	d.logger.Debug("dispatcher ready", "kinds", d.kinds.String())
	return d
}

// Supports reports whether the host advertised kind.
func (d *Dispatcher) Supports(kind domain.OperationKind) bool {
	return d.kinds.Has(kind)
}

// Kinds returns a copy of the kinds advertised by the host.
func (d *Dispatcher) Kinds() domain.KindSet {
	return domain.NewKindSet().Union(d.kinds)
}

// Submit validates req, checks the host supports its kind and hands it to the executor
// together with a single-use guard around listener.
//
// On success the listener will be notified exactly once, asynchronously. On error (invalid
// request, unsupported kind, host rejection) it is never notified and the error is a
// *domain.DispatchError.
func (d *Dispatcher) Submit(req domain.Request, listener ports.Listener) error {
	req, err := d.check(req)
	if err != nil {
		return err
	}
	guard := newOnceListener(req.Kind(), listener)
	if err := d.executor.Execute(req, guard); err != nil {
		if !guard.detach() {
			d.logger.Warn("executor rejected a request it already answered", "kind", req.Kind().String(), "err", err)
		}
		return &domain.DispatchError{Kind: req.Kind(), Err: fmt.Errorf("%w: %w", domain.ErrExecutorRejected, err)}
	}
	return nil
}

// States of a single Dispatch wait. Whichever of the listener and the cancelled caller
// moves first out of dispatchWaiting decides whether the outcome is delivered or late.
const (
	dispatchWaiting int32 = iota
	dispatchDelivered
	dispatchAbandoned
)

// Dispatch submits req and waits for its outcome. It is the only suspension point of the
// one-shot protocol. There is no built-in timeout: if ctx ends first Dispatch returns
// ctx.Err(), and the late outcome is discarded when the host eventually delivers it.
func (d *Dispatcher) Dispatch(ctx context.Context, req domain.Request) (domain.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return domain.Outcome{}, err
	}
	req, err := d.check(req)
	if err != nil {
		return domain.Outcome{}, err
	}

	kind := req.Kind()
	target := domain.Target(req)
	start := time.Now()
	var state atomic.Int32
	results := make(chan domain.Outcome, 1)

	listener := ports.ListenerFunc(func(outcome domain.Outcome) {
		late := !state.CompareAndSwap(dispatchWaiting, dispatchDelivered)
		if late {
			d.logger.Debug("discarding late outcome", "kind", kind.String(), "target", target)
		} else {
			results <- outcome
		}
		if d.hooks.OnOutcome != nil {
			d.hooks.OnOutcome(ctx, &domain.OutcomeEvent{
				EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventOutcome},
				Kind:      kind,
				Target:    target,
				Duration:  time.Since(start),
				Err:       outcome.Err(),
				Abandoned: late,
			})
		}
	})

	if d.hooks.OnDispatch != nil {
		d.hooks.OnDispatch(ctx, &domain.DispatchEvent{
			EventBase: domain.EventBase{Timestamp: start, Type: domain.EventDispatch},
			Kind:      kind,
			Target:    target,
		})
	}
	d.logger.Debug("dispatching", "kind", kind.String(), "target", target)

	if err := d.Submit(req, listener); err != nil {
		return domain.Outcome{}, err
	}

	select {
	case outcome := <-results:
		return d.delivered(kind, target, outcome), nil
	case <-ctx.Done():
		if !state.CompareAndSwap(dispatchWaiting, dispatchAbandoned) {
			// The listener claimed the outcome first; it is already buffered.
			return d.delivered(kind, target, <-results), nil
		}
		d.logger.Debug("caller stopped waiting", "kind", kind.String(), "target", target, "err", ctx.Err())
		return domain.Outcome{}, ctx.Err()
	}
}

func (d *Dispatcher) delivered(kind domain.OperationKind, target string, outcome domain.Outcome) domain.Outcome {
	if outcome.Failed() {
		d.logger.Debug("outcome failed", "kind", kind.String(), "target", target, "err", outcome.Err())
	}
	return outcome
}

// check normalizes req to its value form, validates it and checks the host supports its
// kind. Pointers to the request types are accepted and dereferenced; a nil one is invalid.
func (d *Dispatcher) check(req domain.Request) (domain.Request, error) {
	switch r := req.(type) {
	case nil:
		return nil, &domain.DispatchError{Err: domain.ErrInvalidRequest}
	case *domain.NetworkRequest:
		if r == nil {
			return nil, &domain.DispatchError{Kind: domain.KindNetwork, Err: domain.ErrInvalidRequest}
		}
		req = *r
	case *domain.FileReadRequest:
		if r == nil {
			return nil, &domain.DispatchError{Kind: domain.KindFileRead, Err: domain.ErrInvalidRequest}
		}
		req = *r
	case *domain.FileWriteRequest:
		if r == nil {
			return nil, &domain.DispatchError{Kind: domain.KindFileWrite, Err: domain.ErrInvalidRequest}
		}
		req = *r
	}
	if err := req.Validate(); err != nil {
		return nil, &domain.DispatchError{Kind: req.Kind(), Err: err}
	}
	if !d.kinds.Has(req.Kind()) {
		return nil, &domain.DispatchError{Kind: req.Kind(), Err: domain.ErrUnsupportedKind}
	}
	return req, nil
}
