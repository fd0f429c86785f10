package runtime

import (
	"sync/atomic"

	"github.com/aretw0/opbridge/pkg/domain"
	"github.com/aretw0/opbridge/pkg/ports"
)

const (
	listenerArmed int32 = iota
	listenerFired
	listenerDetached
)

// onceListener is the single-use handle given to the host for one request.
// It enforces the exactly-once contract: a second notification, a notification after the
// host rejected the request, or an outcome of the wrong kind is a ContractViolation.
type onceListener struct {
	kind   domain.OperationKind
	target ports.Listener
	state  atomic.Int32
}

func newOnceListener(kind domain.OperationKind, target ports.Listener) *onceListener {
	return &onceListener{kind: kind, target: target}
}

func (l *onceListener) Notify(outcome domain.Outcome) {
	if outcome.Kind() != l.kind {
		domain.Violate("outcome kind", "%s request notified with %s outcome", l.kind, outcome.Kind())
	}
	if l.state.CompareAndSwap(listenerArmed, listenerFired) {
		l.target.Notify(outcome)
		return
	}
	if l.state.Load() == listenerDetached {
		domain.Violate("listener", "%s listener notified after the host rejected the request", l.kind)
	}
	domain.Violate("listener", "%s listener notified more than once", l.kind)
}

// detach disarms the listener after a synchronous rejection. It reports false when the host
// had already notified it.
func (l *onceListener) detach() bool {
	return l.state.CompareAndSwap(listenerArmed, listenerDetached)
}
