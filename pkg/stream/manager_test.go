package stream_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/opbridge/pkg/ports"
	"github.com/aretw0/opbridge/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_ListAndCancel(t *testing.T) {
	m := stream.NewManager()
	foo := newHost[int](true)
	bar := newHost[int](true)

	subFoo, err := stream.Subscribe(m, "FOO", foo.start)
	require.NoError(t, err)
	subBar, err := stream.Subscribe(m, "BAR", bar.start)
	require.NoError(t, err)
	foo.register()
	bar.register()

	infos := m.List()
	require.Len(t, infos, 2)
	names := []string{infos[0].Name, infos[1].Name}
	assert.ElementsMatch(t, []string{"FOO", "BAR"}, names)

	info, err := m.Get(subFoo.ID())
	require.NoError(t, err)
	assert.Equal(t, stream.StateActive, info.State)

	require.NoError(t, m.Cancel(subFoo.ID()))
	foo.waitNotified(t)
	waitDone(t, subFoo.Done())

	assert.ErrorIs(t, m.Cancel(subFoo.ID()), stream.ErrNotFound)
	assert.ErrorIs(t, m.Cancel("not-a-uuid"), stream.ErrNotFound)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, stream.StateActive, subBar.State())
}

func TestManager_CloseCancelsEverything(t *testing.T) {
	m := stream.NewManager(stream.WithDefaultGracePeriod(50 * time.Millisecond))
	responsive := newHost[int](true)
	stuck := newHost[int](false)

	a, err := stream.Subscribe(m, "a", responsive.start)
	require.NoError(t, err)
	b, err := stream.Subscribe(m, "b", stuck.start)
	require.NoError(t, err)
	responsive.register()
	stuck.register()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Close(ctx))

	assert.Equal(t, stream.ReasonCancelled, a.Reason())
	assert.Equal(t, stream.ReasonForced, b.Reason())
	assert.Zero(t, m.Len())

	_, err = stream.Subscribe(m, "late", func(ports.Publisher[int]) error { return nil })
	assert.ErrorIs(t, err, stream.ErrManagerClosed)
}

func TestManager_CloseBoundedByContext(t *testing.T) {
	m := stream.NewManager(stream.WithDefaultGracePeriod(time.Hour))
	stuck := newHost[int](false)
	_, err := stream.Subscribe(m, "stuck", stuck.start)
	require.NoError(t, err)
	stuck.register()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Close(ctx), context.DeadlineExceeded)
}
