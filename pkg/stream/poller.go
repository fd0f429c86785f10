package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/opbridge/internal/logging"
	"github.com/aretw0/opbridge/pkg/ports"
)

// DefaultPollInterval is the delay between two fetches of a polling subscription.
const DefaultPollInterval = 5 * time.Second

// Fetcher performs one one-shot fetch of the latest value.
type Fetcher[T any] func(ctx context.Context) (T, error)

// PollConfig tunes a Poller.
type PollConfig struct {
	// Interval between the end of a fetch and the start of the next one.
	Interval time.Duration
	// MaxFailures is the number of consecutive fetch errors tolerated before the
	// subscription fails. Zero retries forever.
	MaxFailures int
	Logger      *slog.Logger
}

// failer is implemented by publishers that can end with an error.
type failer interface {
	Fail(err error)
}

// Poller turns repeated one-shot fetches into a stream. It is restartable: once a run has
// stopped it can be started again with a new publisher.
type Poller[T any] struct {
	fetch  Fetcher[T]
	cfg    PollConfig
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	runs    int
}

func NewPoller[T any](fetch Fetcher[T], cfg PollConfig) *Poller[T] {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Poller[T]{fetch: fetch, cfg: cfg, logger: logger}
}

// Start begins a run publishing into pub. The run stops when pub's consumer cancels,
// when Stop is called, or when MaxFailures is reached.
func (p *Poller[T]) Start(pub ports.Publisher[T]) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrPollerRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.running = true
	p.cancel = cancel
	p.done = done
	p.runs++
	run := p.runs
	p.mu.Unlock()

	pub.RegisterCancellationListener(ports.CancellationFunc(cancel))
	go p.run(ctx, cancel, pub, done, run)
	return nil
}

// Stop ends the current run. The publisher is finished by the run itself.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

// Wait blocks until the current run has stopped or ctx ends.
func (p *Poller[T]) Wait(ctx context.Context) error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poller[T]) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Runs returns how many times the poller was started.
func (p *Poller[T]) Runs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runs
}

func (p *Poller[T]) run(ctx context.Context, cancel context.CancelFunc, pub ports.Publisher[T], done chan struct{}, run int) {
	logger := p.logger.With("run", run)
	var cause error
	defer func() {
		cancel()
		if f, ok := pub.(failer); ok && cause != nil {
			f.Fail(cause)
		} else {
			pub.Finished()
		}
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		close(done)
		logger.Debug("poller stopped", "err", cause)
	}()

	failures := 0
	for {
		if ctx.Err() != nil {
			return
		}

		value, err := p.fetch(ctx)
		switch {
		case err == nil:
			failures = 0
			pub.OnValue(value)
		case ctx.Err() != nil:
			return
		default:
			failures++
			logger.Warn("fetch failed", "err", err, "consecutive", failures)
			if p.cfg.MaxFailures > 0 && failures >= p.cfg.MaxFailures {
				cause = err
				return
			}
		}

		if ctx.Err() != nil {
			return
		}
		timer := time.NewTimer(p.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Poll creates a polling subscription backed by a new Poller. Immediate repeats are
// suppressed with DedupDeepEqual unless opts say otherwise.
func Poll[T any](m *Manager, name string, fetch Fetcher[T], cfg PollConfig, opts ...Option[T]) (*Subscription[T], error) {
	if cfg.Logger == nil {
		cfg.Logger = m.logger.With("poller", name)
	}
	poller := NewPoller(fetch, cfg)
	opts = append([]Option[T]{WithDedup(DedupDeepEqual[T]())}, opts...)
	return Subscribe(m, name, poller.Start, opts...)
}
