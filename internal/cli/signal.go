package cli

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// SignalManager turns SIGINT/SIGTERM into context cancellation and remembers
// which signal arrived.
type SignalManager struct {
	ctx    context.Context
	cancel context.CancelFunc
	sigCh  chan os.Signal
	stop   sync.Once

	mu  sync.Mutex
	sig os.Signal
}

// NewSignalManager creates a manager and immediately starts listening for signals.
func NewSignalManager(parent context.Context) *SignalManager {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	sm := &SignalManager{
		ctx:    ctx,
		cancel: cancel,
		sigCh:  make(chan os.Signal, 1),
	}
	signal.Notify(sm.sigCh, os.Interrupt, syscall.SIGTERM)
	go sm.wait()
	return sm
}

func (sm *SignalManager) wait() {
	select {
	case sig := <-sm.sigCh:
		sm.mu.Lock()
		sm.sig = sig
		sm.mu.Unlock()
		sm.cancel()
	case <-sm.ctx.Done():
		// Cancelled elsewhere
	}
	sm.Stop()
}

// Context is cancelled by the first signal or by Stop.
func (sm *SignalManager) Context() context.Context {
	return sm.ctx
}

// Signal returns the signal that cancelled the context, or nil.
func (sm *SignalManager) Signal() os.Signal {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.sig
}

// Stop releases the signal listener and cancels the context.
func (sm *SignalManager) Stop() {
	sm.stop.Do(func() {
		signal.Stop(sm.sigCh)
		sm.cancel()
	})
}
