package opbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/opbridge/internal/logging"
	"github.com/aretw0/opbridge/internal/runtime"
	"github.com/aretw0/opbridge/pkg/domain"
	"github.com/aretw0/opbridge/pkg/ports"
	"github.com/aretw0/opbridge/pkg/stream"
)

// Bridge is the high-level entry point of the library.
// It wraps the dispatcher and the subscription manager around one host executor.
type Bridge struct {
	dispatcher   *runtime.Dispatcher
	streams      *stream.Manager
	hooks        domain.LifecycleHooks
	logger       *slog.Logger
	grace        time.Duration
	pollInterval time.Duration
	maxFailures  int
	Name         string
}

// Option defines a functional option for configuring the Bridge.
type Option func(*Bridge)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(b *Bridge) {
		b.hooks = b.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// WithGracePeriod bounds how long a cancelled subscription waits for its producer.
func WithGracePeriod(d time.Duration) Option {
	return func(b *Bridge) {
		b.grace = d
	}
}

// WithPollInterval sets the delay between fetches of polling subscriptions.
func WithPollInterval(d time.Duration) Option {
	return func(b *Bridge) {
		b.pollInterval = d
	}
}

// WithPollMaxFailures fails polling subscriptions after n consecutive fetch errors.
// Zero (the default) retries forever.
func WithPollMaxFailures(n int) Option {
	return func(b *Bridge) {
		b.maxFailures = n
	}
}

// WithName labels the bridge in logs.
func WithName(name string) Option {
	return func(b *Bridge) {
		b.Name = name
	}
}

// New builds a bridge around the host executor.
func New(executor ports.Executor, opts ...Option) (*Bridge, error) {
	if executor == nil {
		return nil, errors.New("executor is required")
	}
	b := &Bridge{
		grace:        stream.DefaultGracePeriod,
		pollInterval: stream.DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logging.NewNop()
	}
	if b.Name != "" {
		b.logger = b.logger.With("bridge", b.Name)
	}

	b.dispatcher = runtime.NewDispatcher(executor,
		runtime.WithLogger(b.logger),
		runtime.WithLifecycleHooks(b.hooks),
	)
	b.streams = stream.NewManager(
		stream.WithLogger(b.logger),
		stream.WithLifecycleHooks(b.hooks),
		stream.WithDefaultGracePeriod(b.grace),
	)
	return b, nil
}

// Supports reports whether the host advertised kind.
func (b *Bridge) Supports(kind domain.OperationKind) bool {
	return b.dispatcher.Supports(kind)
}

// Kinds returns the kinds the host advertised.
func (b *Bridge) Kinds() domain.KindSet {
	return b.dispatcher.Kinds()
}

// Streams exposes the subscription registry (listing, cancellation by id).
func (b *Bridge) Streams() *stream.Manager {
	return b.streams
}

// Dispatch sends req to the host and waits for its outcome.
// A non-nil error means the request never reached the host or ctx ended; domain failures
// are carried by the outcome.
func (b *Bridge) Dispatch(ctx context.Context, req domain.Request) (domain.Outcome, error) {
	return b.dispatcher.Dispatch(ctx, req)
}

// Fetch performs a network request. Failures are *domain.NetworkError values.
func (b *Bridge) Fetch(ctx context.Context, req domain.NetworkRequest) (domain.NetworkResponse, error) {
	outcome, err := b.dispatcher.Dispatch(ctx, req)
	if err != nil {
		return domain.NetworkResponse{}, err
	}
	return outcome.Network()
}

// ReadFile reads the file at the absolute path. A missing file is not an error.
func (b *Bridge) ReadFile(ctx context.Context, path string) (domain.FileReadResponse, error) {
	outcome, err := b.dispatcher.Dispatch(ctx, domain.FileReadRequest{Path: path})
	if err != nil {
		return domain.FileReadResponse{}, err
	}
	return outcome.FileRead()
}

// WriteFile writes contents at the absolute path, resolving an existing file with strategy.
func (b *Bridge) WriteFile(ctx context.Context, path string, contents []byte, strategy domain.ExistsStrategy) (domain.FileWriteResponse, error) {
	outcome, err := b.dispatcher.Dispatch(ctx, domain.FileWriteRequest{
		Path:     path,
		Contents: contents,
		Strategy: strategy,
	})
	if err != nil {
		return domain.FileWriteResponse{}, err
	}
	return outcome.FileWrite()
}

// Close cancels every subscription and waits for them to terminate.
func (b *Bridge) Close(ctx context.Context) error {
	return b.streams.Close(ctx)
}

// Subscribe opens a push subscription: start receives the publisher the host pushes into.
func Subscribe[T any](b *Bridge, name string, start stream.StartFunc[T], opts ...stream.Option[T]) (*stream.Subscription[T], error) {
	return stream.Subscribe(b.streams, name, start, opts...)
}

// PollNetwork opens a polling subscription that dispatches req on every tick and decodes
// each successful response with decode. Immediate repeats are suppressed.
//
// The request is validated up front: an invalid URL or unsupported kind fails here instead
// of inside the poll loop.
func PollNetwork[T any](b *Bridge, name string, req domain.NetworkRequest, decode func(domain.NetworkResponse) (T, error), opts ...stream.Option[T]) (*stream.Subscription[T], error) {
	if err := req.Validate(); err != nil {
		return nil, &domain.DispatchError{Kind: req.Kind(), Err: err}
	}
	if !b.Supports(domain.KindNetwork) {
		return nil, &domain.DispatchError{Kind: domain.KindNetwork, Err: domain.ErrUnsupportedKind}
	}

	fetch := func(ctx context.Context) (T, error) {
		var zero T
		resp, err := b.Fetch(ctx, req)
		if err != nil {
			return zero, err
		}
		v, err := decode(resp)
		if err != nil {
			return zero, fmt.Errorf("decode %s: %w", req.URL, err)
		}
		return v, nil
	}
	return stream.Poll(b.streams, name, fetch, stream.PollConfig{
		Interval:    b.pollInterval,
		MaxFailures: b.maxFailures,
		Logger:      b.logger.With("poll", name),
	}, opts...)
}
