package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/opbridge/pkg/domain"
	"github.com/aretw0/opbridge/pkg/ports"
	"github.com/google/uuid"
)

// Option configures a single subscription.
type Option[T any] func(*Subscription[T])

// WithDedup suppresses values that repeat their immediate predecessor according to fn.
func WithDedup[T any](fn DedupFunc[T]) Option[T] {
	return func(s *Subscription[T]) {
		s.dedup = fn
	}
}

// WithoutDedup delivers every value, including immediate repeats.
func WithoutDedup[T any]() Option[T] {
	return func(s *Subscription[T]) {
		s.dedup = nil
	}
}

// WithGracePeriod overrides the manager's grace period for this subscription.
func WithGracePeriod[T any](d time.Duration) Option[T] {
	return func(s *Subscription[T]) {
		s.grace = d
	}
}

// Info is a point-in-time snapshot of a subscription.
type Info struct {
	ID         string    `json:"id"`
	Name       string    `json:"name,omitempty"`
	State      State     `json:"state"`
	Reason     Reason    `json:"reason,omitempty"`
	Delivered  uint64    `json:"delivered"`
	Suppressed uint64    `json:"suppressed"`
	Queued     int       `json:"queued"`
	Created    time.Time `json:"created"`
}

// Subscription is one producer/consumer relation.
//
// The producer drives it through the ports.Publisher methods (OnValue, Finished,
// RegisterCancellationListener) plus Fail. The consumer reads with Next or Values and stops
// it with Cancel. Producers never block: values are queued without bound and handed to the
// consumer in emission order.
type Subscription[T any] struct {
	id      uuid.UUID
	name    string
	created time.Time
	grace   time.Duration
	dedup   DedupFunc[T]
	logger  *slog.Logger
	hooks   domain.LifecycleHooks
	release func(uuid.UUID)

	mu         sync.Mutex
	state      State
	reason     Reason
	err        error
	queue      []T
	last       T
	hasLast    bool
	changed    chan struct{}
	listener   ports.CancellationListener
	registered bool
	notified   bool
	delivered  uint64
	suppressed uint64
	timer      *time.Timer

	done     chan struct{}
	teardown sync.Once
}

func newSubscription[T any](m *Manager, name string, opts ...Option[T]) *Subscription[T] {
	id := uuid.New()
	s := &Subscription[T]{
		id:      id,
		name:    name,
		created: m.now(),
		grace:   m.grace,
		logger:  m.logger.With("subscription_id", id.String(), "name", name),
		hooks:   m.hooks,
		release: m.release,
		changed: make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.grace <= 0 {
		s.grace = DefaultGracePeriod
	}
	return s
}

func (s *Subscription[T]) ID() string { return s.id.String() }

func (s *Subscription[T]) Name() string { return s.name }

// Done is closed once the subscription is Terminated and torn down.
func (s *Subscription[T]) Done() <-chan struct{} { return s.done }

func (s *Subscription[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reason reports why the subscription terminated, or ReasonNone while it is live.
func (s *Subscription[T]) Reason() Reason {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateTerminated {
		return ReasonNone
	}
	return s.reason
}

// Err returns nil while live or after a natural finish, ErrSubscriptionCancelled after a
// cancellation, and the producer's error after Fail.
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateTerminated || s.reason == ReasonFinished {
		return nil
	}
	return s.endErrLocked()
}

func (s *Subscription[T]) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:         s.id.String(),
		Name:       s.name,
		State:      s.state,
		Reason:     s.reason,
		Delivered:  s.delivered,
		Suppressed: s.suppressed,
		Queued:     len(s.queue),
		Created:    s.created,
	}
}

// Next blocks until the next value is available, the subscription ends or ctx is done.
// Values queued before the producer finished are still returned; once drained Next returns
// domain.ErrStreamFinished. After Cancel it returns domain.ErrSubscriptionCancelled.
func (s *Subscription[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			v := s.queue[0]
			s.queue[0] = zero
			s.queue = s.queue[1:]
			s.delivered++
			s.mu.Unlock()
			s.emitValue(false)
			return v, nil
		}
		if !s.state.Live() {
			err := s.endErrLocked()
			s.mu.Unlock()
			return zero, err
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Values streams the subscription into a channel that is closed when it ends.
func (s *Subscription[T]) Values(ctx context.Context) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for {
			v, err := s.Next(ctx)
			if err != nil {
				return
			}
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Cancel stops delivery to the consumer and asks the producer to stop.
// The producer is notified at most once, on its own goroutine. Cancelling a subscription
// that is already stopping or terminated does nothing.
func (s *Subscription[T]) Cancel() {
	s.mu.Lock()
	from := s.state
	switch from {
	case StateCancelling, StateTerminated:
		s.mu.Unlock()
		return
	case StateCreated:
		// No producer was ever attached.
		s.queue = nil
		s.terminateLocked(ReasonCancelled, nil)
		s.mu.Unlock()
		s.finish(from, ReasonCancelled)
		return
	}

	s.state = StateCancelling
	s.reason = ReasonCancelled
	s.queue = nil
	s.signalLocked()
	// Without a registered listener the notification stays pending until registration.
	listener := s.takeListenerLocked()
	s.timer = time.AfterFunc(s.grace, s.expire)
	s.mu.Unlock()

	s.emitState(from, StateCancelling, ReasonCancelled)
	s.notify(listener)
}

func (s *Subscription[T]) expire() {
	s.mu.Lock()
	if s.state != StateCancelling {
		s.mu.Unlock()
		return
	}
	s.terminateLocked(ReasonForced, nil)
	s.mu.Unlock()

	s.logger.Warn("producer did not acknowledge cancellation", "grace", s.grace)
	s.finish(StateCancelling, ReasonForced)
}

// OnValue queues value for the consumer. Values published after the subscription stopped
// are dropped.
func (s *Subscription[T]) OnValue(value T) {
	s.mu.Lock()
	if !s.state.Live() {
		s.mu.Unlock()
		s.logger.Debug("dropping value published after stop")
		return
	}
	suppressed := s.hasLast && s.dedup != nil && s.dedup(s.last, value)
	if suppressed {
		s.suppressed++
	} else {
		s.queue = append(s.queue, value)
		s.last = value
		s.hasLast = true
		s.signalLocked()
	}
	s.mu.Unlock()

	if suppressed {
		s.emitValue(true)
	}
}

// Finished ends the subscription from the producer side. While Cancelling it acknowledges
// the cancellation.
func (s *Subscription[T]) Finished() {
	s.stop(ReasonFinished, nil)
}

// Fail ends the subscription because the producer hit a fatal condition. Queued values are
// still drained, then Next returns err.
func (s *Subscription[T]) Fail(err error) {
	if err == nil {
		s.Finished()
		return
	}
	s.stop(ReasonFailed, err)
}

func (s *Subscription[T]) stop(reason Reason, err error) {
	s.mu.Lock()
	from := s.state
	switch from {
	case StateTerminated:
		s.mu.Unlock()
		return
	case StateCancelling:
		reason, err = ReasonCancelled, nil
	}
	s.terminateLocked(reason, err)
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("producer failed", "err", err)
	}
	s.finish(from, reason)
}

// RegisterCancellationListener completes the handshake and moves the subscription to Active.
// A cancellation requested before registration is delivered to listener immediately.
func (s *Subscription[T]) RegisterCancellationListener(listener ports.CancellationListener) {
	if listener == nil {
		domain.Violate("cancellation listener", "subscription %s registered a nil listener", s.id)
	}
	s.mu.Lock()
	if s.registered {
		s.mu.Unlock()
		domain.Violate("cancellation listener", "subscription %s registered a second listener", s.id)
	}
	s.registered = true
	s.listener = listener

	from := s.state
	var pending ports.CancellationListener
	switch from {
	case StateCreated, StateSubscribed:
		s.state = StateActive
	case StateCancelling:
		pending = s.takeListenerLocked()
	case StateTerminated:
		if s.reason == ReasonCancelled || s.reason == ReasonForced {
			pending = s.takeListenerLocked()
		}
	}
	s.mu.Unlock()

	if from == StateCreated || from == StateSubscribed {
		s.emitState(from, StateActive, ReasonNone)
	}
	s.notify(pending)
}

func (s *Subscription[T]) markSubscribed() {
	s.mu.Lock()
	if s.state != StateCreated {
		s.mu.Unlock()
		return
	}
	s.state = StateSubscribed
	s.mu.Unlock()
	s.emitState(StateCreated, StateSubscribed, ReasonNone)
}

func (s *Subscription[T]) takeListenerLocked() ports.CancellationListener {
	if s.listener == nil || s.notified {
		return nil
	}
	s.notified = true
	return s.listener
}

func (s *Subscription[T]) notify(listener ports.CancellationListener) {
	if listener == nil {
		return
	}
	go listener.NotifyCancelled()
}

func (s *Subscription[T]) terminateLocked(reason Reason, err error) {
	s.state = StateTerminated
	s.reason = reason
	s.err = err
	if s.timer != nil {
		s.timer.Stop()
	}
	s.signalLocked()
}

func (s *Subscription[T]) signalLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Subscription[T]) endErrLocked() error {
	switch s.reason {
	case ReasonFinished:
		return domain.ErrStreamFinished
	case ReasonFailed:
		return s.err
	default:
		return domain.ErrSubscriptionCancelled
	}
}

// finish releases the subscription exactly once, whichever side terminated it.
func (s *Subscription[T]) finish(from State, reason Reason) {
	s.teardown.Do(func() {
		if s.release != nil {
			s.release(s.id)
		}
		close(s.done)
		s.emitState(from, StateTerminated, reason)
	})
}

func (s *Subscription[T]) emitState(from, to State, reason Reason) {
	s.logger.Debug("subscription state", "from", from.String(), "to", to.String(), "reason", string(reason))
	if s.hooks.OnSubscriptionState == nil {
		return
	}
	s.hooks.OnSubscriptionState(context.Background(), &domain.SubscriptionEvent{
		EventBase:      domain.EventBase{Timestamp: time.Now(), Type: domain.EventSubscriptionState},
		SubscriptionID: s.id.String(),
		Name:           s.name,
		From:           from.String(),
		To:             to.String(),
		Reason:         string(reason),
	})
}

func (s *Subscription[T]) emitValue(suppressed bool) {
	if s.hooks.OnValue == nil {
		return
	}
	s.hooks.OnValue(context.Background(), &domain.ValueEvent{
		EventBase:      domain.EventBase{Timestamp: time.Now(), Type: domain.EventValue},
		SubscriptionID: s.id.String(),
		Name:           s.name,
		Suppressed:     suppressed,
	})
}
