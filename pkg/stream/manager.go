package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/opbridge/internal/logging"
	"github.com/aretw0/opbridge/pkg/domain"
	"github.com/aretw0/opbridge/pkg/ports"
	"github.com/google/uuid"
)

// handle is the type-erased view the registry keeps of a Subscription[T].
type handle interface {
	Info() Info
	Cancel()
	Done() <-chan struct{}
}

// Manager is the registry of live subscriptions.
// Subscriptions are independent: they share the registry and nothing else.
type Manager struct {
	grace  time.Duration
	logger *slog.Logger
	hooks  domain.LifecycleHooks
	now    func() time.Time

	mu     sync.Mutex
	subs   map[uuid.UUID]handle
	closed bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithLifecycleHooks registers the subscription and value hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) ManagerOption {
	return func(m *Manager) {
		m.hooks = hooks
	}
}

// WithDefaultGracePeriod sets how long cancelled subscriptions wait for the producer.
func WithDefaultGracePeriod(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.grace = d
	}
}

func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		grace:  DefaultGracePeriod,
		logger: logging.NewNop(),
		now:    time.Now,
		subs:   make(map[uuid.UUID]handle),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartFunc attaches a producer to its publisher. It must not block; producers run on
// their own goroutines and call RegisterCancellationListener once they are ready.
type StartFunc[T any] func(pub ports.Publisher[T]) error

// Subscribe creates a push subscription and hands its publisher to start.
func Subscribe[T any](m *Manager, name string, start StartFunc[T], opts ...Option[T]) (*Subscription[T], error) {
	s := newSubscription(m, name, opts...)
	if err := m.register(s.id, s); err != nil {
		return nil, err
	}
	s.markSubscribed()
	if err := start(s); err != nil {
		s.Fail(err)
		return nil, fmt.Errorf("start subscription %q: %w", name, err)
	}
	return s, nil
}

func (m *Manager) register(id uuid.UUID, h handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	m.subs[id] = h
	return nil
}

func (m *Manager) release(id uuid.UUID) {
	m.mu.Lock()
	delete(m.subs, id)
	m.mu.Unlock()
}

// Len returns the number of live subscriptions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// List returns snapshots of the live subscriptions, oldest first.
func (m *Manager) List() []Info {
	m.mu.Lock()
	handles := make([]handle, 0, len(m.subs))
	for _, h := range m.subs {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	infos := make([]Info, 0, len(handles))
	for _, h := range handles {
		infos = append(infos, h.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].Created.Equal(infos[j].Created) {
			return infos[i].Created.Before(infos[j].Created)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos
}

// Get returns the snapshot of one live subscription.
func (m *Manager) Get(id string) (Info, error) {
	h, err := m.lookup(id)
	if err != nil {
		return Info{}, err
	}
	return h.Info(), nil
}

// Cancel cancels the live subscription with the given id.
func (m *Manager) Cancel(id string) error {
	h, err := m.lookup(id)
	if err != nil {
		return err
	}
	h.Cancel()
	return nil
}

func (m *Manager) lookup(id string) (handle, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	m.mu.Lock()
	h, ok := m.subs[uid]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return h, nil
}

// Close refuses new subscriptions, cancels every live one and waits for them to terminate
// or for ctx to end. Each wait is bounded by the grace period anyway.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	handles := make([]handle, 0, len(m.subs))
	for _, h := range m.subs {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	m.logger.Debug("closing subscriptions", "count", len(handles))
	for _, h := range handles {
		h.Cancel()
	}
	for _, h := range handles {
		select {
		case <-h.Done():
		case <-ctx.Done():
			return fmt.Errorf("close subscriptions: %w", ctx.Err())
		}
	}
	return nil
}
