package stream_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/opbridge/pkg/ports"
	"github.com/aretw0/opbridge/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingPublisher is a host-side consumer.
type recordingPublisher struct {
	mu       sync.Mutex
	values   []int
	finished int
	stop     ports.CancellationListener
	got      chan int
}

func (p *recordingPublisher) OnValue(v int) {
	p.mu.Lock()
	p.values = append(p.values, v)
	p.mu.Unlock()
	p.got <- v
}

func (p *recordingPublisher) Finished() {
	p.mu.Lock()
	p.finished++
	p.mu.Unlock()
}

func (p *recordingPublisher) RegisterCancellationListener(l ports.CancellationListener) {
	p.stop = l
}

func TestForward_HostCancels(t *testing.T) {
	m := stream.NewManager()
	f := &feed{}
	sub, err := stream.Poll(m, "forward", f.fetch, stream.PollConfig{Interval: time.Millisecond})
	require.NoError(t, err)

	hostPub := &recordingPublisher{got: make(chan int, 16)}
	result := make(chan error, 1)
	go func() { result <- stream.Forward(context.Background(), sub, hostPub) }()

	assert.Equal(t, 0, <-hostPub.got)
	f.advance()
	assert.Equal(t, 1, <-hostPub.got)

	// Forward registered its listener before pumping the first value.
	require.NotNil(t, hostPub.stop)
	hostPub.stop.NotifyCancelled()

	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("forward did not stop")
	}
	waitDone(t, sub.Done())

	hostPub.mu.Lock()
	defer hostPub.mu.Unlock()
	assert.Equal(t, []int{0, 1}, hostPub.values)
	assert.Equal(t, 1, hostPub.finished)
}

func TestForward_ContextEnds(t *testing.T) {
	m := stream.NewManager()
	f := &feed{}
	sub, err := stream.Poll(m, "ctx", f.fetch, stream.PollConfig{Interval: time.Millisecond})
	require.NoError(t, err)

	hostPub := &recordingPublisher{got: make(chan int, 16)}
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- stream.Forward(ctx, sub, hostPub) }()

	<-hostPub.got
	cancel()
	assert.ErrorIs(t, <-result, context.Canceled)
	waitDone(t, sub.Done())
	assert.Equal(t, 1, hostPub.finished)
}
