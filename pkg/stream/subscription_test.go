package stream_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/opbridge/pkg/domain"
	"github.com/aretw0/opbridge/pkg/ports"
	"github.com/aretw0/opbridge/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// host is a push producer living on "the other side". It keeps the publisher it was
// given and counts cancellation notifications.
type host[T any] struct {
	pub       ports.Publisher[T]
	cancelled atomic.Int32
	notified  chan struct{}
	ack       bool
}

func newHost[T any](ack bool) *host[T] {
	return &host[T]{notified: make(chan struct{}, 8), ack: ack}
}

func (h *host[T]) start(pub ports.Publisher[T]) error {
	h.pub = pub
	return nil
}

func (h *host[T]) register() {
	h.pub.RegisterCancellationListener(ports.CancellationFunc(func() {
		h.cancelled.Add(1)
		if h.ack {
			h.pub.Finished()
		}
		h.notified <- struct{}{}
	}))
}

func (h *host[T]) waitNotified(t *testing.T) {
	t.Helper()
	select {
	case <-h.notified:
	case <-time.After(time.Second):
		t.Fatal("host was not notified of cancellation")
	}
}

func drain[T any](t *testing.T, sub *stream.Subscription[T]) ([]T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var got []T
	for {
		v, err := sub.Next(ctx)
		if err != nil {
			return got, err
		}
		got = append(got, v)
	}
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscription did not terminate")
	}
}

func TestSubscription_DeliversInOrder(t *testing.T) {
	m := stream.NewManager()
	h := newHost[string](true)
	sub, err := stream.Subscribe(m, "ordered", h.start)
	require.NoError(t, err)
	assert.Equal(t, stream.StateSubscribed, sub.State())

	h.register()
	assert.Equal(t, stream.StateActive, sub.State())

	go func() {
		for _, v := range []string{"v1", "v2", "v3"} {
			h.pub.OnValue(v)
		}
		h.pub.Finished()
	}()

	got, err := drain(t, sub)
	assert.ErrorIs(t, err, domain.ErrStreamFinished)
	assert.Equal(t, []string{"v1", "v2", "v3"}, got)
	assert.Equal(t, stream.ReasonFinished, sub.Reason())
	assert.NoError(t, sub.Err())
	waitDone(t, sub.Done())
	assert.Zero(t, m.Len())
}

func TestSubscription_DedupImmediatePredecessor(t *testing.T) {
	m := stream.NewManager()
	h := newHost[string](true)
	sub, err := stream.Subscribe(m, "dedup", h.start, stream.WithDedup(stream.DedupComparable[string]()))
	require.NoError(t, err)
	h.register()

	for _, v := range []string{"v1", "v1", "v2", "v1", "v1"} {
		h.pub.OnValue(v)
	}
	h.pub.Finished()

	got, err := drain(t, sub)
	assert.ErrorIs(t, err, domain.ErrStreamFinished)
	assert.Equal(t, []string{"v1", "v2", "v1"}, got, "a reverted value is not a repeat")
	info := sub.Info()
	assert.Equal(t, uint64(3), info.Delivered)
	assert.Equal(t, uint64(2), info.Suppressed)
}

func TestSubscription_DedupByKey(t *testing.T) {
	type tx struct {
		ID     string
		Amount int
	}
	m := stream.NewManager()
	h := newHost[tx](true)
	sub, err := stream.Subscribe(m, "tx", h.start, stream.WithDedup(stream.DedupBy(func(v tx) string { return v.ID })))
	require.NoError(t, err)
	h.register()

	h.pub.OnValue(tx{ID: "a", Amount: 1})
	h.pub.OnValue(tx{ID: "a", Amount: 2})
	h.pub.OnValue(tx{ID: "b", Amount: 3})
	h.pub.Finished()

	got, _ := drain(t, sub)
	assert.Equal(t, []tx{{ID: "a", Amount: 1}, {ID: "b", Amount: 3}}, got)
}

func TestSubscription_CancelIsIdempotent(t *testing.T) {
	var transitions atomic.Int32
	m := stream.NewManager(stream.WithLifecycleHooks(domain.LifecycleHooks{
		OnSubscriptionState: func(_ context.Context, e *domain.SubscriptionEvent) {
			if e.To == stream.StateTerminated.String() {
				transitions.Add(1)
			}
		},
	}))
	h := newHost[int](true)
	sub, err := stream.Subscribe(m, "twice", h.start)
	require.NoError(t, err)
	h.register()
	h.pub.OnValue(1)

	sub.Cancel()
	sub.Cancel()
	h.waitNotified(t)
	waitDone(t, sub.Done())
	sub.Cancel()

	assert.Equal(t, int32(1), h.cancelled.Load(), "host notified once")
	assert.Equal(t, int32(1), transitions.Load(), "terminated once")
	assert.Equal(t, stream.StateTerminated, sub.State())
	assert.Equal(t, stream.ReasonCancelled, sub.Reason())
	assert.ErrorIs(t, sub.Err(), domain.ErrSubscriptionCancelled)

	_, err = sub.Next(context.Background())
	assert.ErrorIs(t, err, domain.ErrSubscriptionCancelled, "queued values are not delivered after cancel")
}

func TestSubscription_CancelBeforeRegistrationIsBuffered(t *testing.T) {
	m := stream.NewManager()
	h := newHost[int](true)
	sub, err := stream.Subscribe(m, "early", h.start)
	require.NoError(t, err)

	sub.Cancel()
	assert.Equal(t, stream.StateCancelling, sub.State())
	assert.Zero(t, h.cancelled.Load())

	h.register()
	h.waitNotified(t)
	waitDone(t, sub.Done())
	assert.Equal(t, int32(1), h.cancelled.Load())
	assert.Equal(t, stream.ReasonCancelled, sub.Reason())
}

func TestSubscription_UnresponsiveHostIsForced(t *testing.T) {
	m := stream.NewManager(stream.WithDefaultGracePeriod(30 * time.Millisecond))
	h := newHost[int](false)
	sub, err := stream.Subscribe(m, "stuck", h.start)
	require.NoError(t, err)
	h.register()

	sub.Cancel()
	h.waitNotified(t)
	waitDone(t, sub.Done())

	assert.Equal(t, stream.ReasonForced, sub.Reason())
	assert.ErrorIs(t, sub.Err(), domain.ErrSubscriptionCancelled)

	// A late acknowledgement or value is harmless.
	h.pub.OnValue(7)
	h.pub.Finished()
	assert.Equal(t, stream.ReasonForced, sub.Reason())
}

func TestSubscription_NoDeliveryAfterCancel(t *testing.T) {
	m := stream.NewManager()
	h := newHost[int](false)
	sub, err := stream.Subscribe(m, "stop", h.start, stream.WithGracePeriod[int](time.Hour))
	require.NoError(t, err)
	h.register()

	h.pub.OnValue(1)
	h.pub.OnValue(2)
	sub.Cancel()
	h.pub.OnValue(3)

	_, err = sub.Next(context.Background())
	assert.ErrorIs(t, err, domain.ErrSubscriptionCancelled)
	assert.Equal(t, stream.StateCancelling, sub.State())

	h.pub.Finished()
	waitDone(t, sub.Done())
	assert.Equal(t, stream.ReasonCancelled, sub.Reason())
}

func TestSubscription_ProducerFailureDrainsFirst(t *testing.T) {
	m := stream.NewManager()
	h := newHost[int](true)
	sub, err := stream.Subscribe(m, "fail", h.start)
	require.NoError(t, err)
	h.register()

	boom := errors.New("host lost connection")
	h.pub.OnValue(1)
	sub.Fail(boom)

	got, err := drain(t, sub)
	assert.Equal(t, []int{1}, got)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, sub.Err(), boom)
	assert.Equal(t, stream.ReasonFailed, sub.Reason())
}

func TestSubscription_SecondListenerIsViolation(t *testing.T) {
	m := stream.NewManager()
	h := newHost[int](true)
	sub, err := stream.Subscribe(m, "dup", h.start)
	require.NoError(t, err)
	h.register()

	assert.Panics(t, func() {
		sub.RegisterCancellationListener(ports.CancellationFunc(func() {}))
	})
}

func TestSubscription_NextHonoursContext(t *testing.T) {
	m := stream.NewManager()
	h := newHost[int](true)
	sub, err := stream.Subscribe(m, "idle", h.start)
	require.NoError(t, err)
	h.register()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = sub.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, stream.StateActive, sub.State())
}

func TestSubscription_Values(t *testing.T) {
	m := stream.NewManager()
	h := newHost[int](true)
	sub, err := stream.Subscribe(m, "chan", h.start)
	require.NoError(t, err)
	h.register()

	go func() {
		for i := 1; i <= 5; i++ {
			h.pub.OnValue(i)
		}
		h.pub.Finished()
	}()

	var got []int
	for v := range sub.Values(context.Background()) {
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
}

func TestSubscribe_StartErrorFailsSubscription(t *testing.T) {
	m := stream.NewManager()
	boom := errors.New("no such feed")
	_, err := stream.Subscribe(m, "broken", func(ports.Publisher[int]) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, m.Len())
}

func TestState_Text(t *testing.T) {
	var s stream.State
	require.NoError(t, s.UnmarshalText([]byte("Cancelling")))
	assert.Equal(t, stream.StateCancelling, s)
	assert.False(t, s.Live())
	assert.Error(t, s.UnmarshalText([]byte("paused")))
	assert.Equal(t, "state(9)", stream.State(9).String())
}
