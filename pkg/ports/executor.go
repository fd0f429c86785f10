package ports

import "github.com/aretw0/opbridge/pkg/domain"

// Executor is implemented by the host to perform effects on the engine's behalf.
type Executor interface {
	// SupportedKinds lists the operation kinds the host can perform. The engine queries it
	// once and never sends a request of another kind.
	SupportedKinds() domain.KindSet

	// Execute starts the effect on the host's own scheduling domain and returns promptly.
	// The listener must be notified exactly once, from any goroutine, with an Outcome of the
	// request's kind. Domain failures travel through the listener; an error is returned
	// only when the host refuses the request outright, in which case the listener must not
	// be notified. Execute must not panic.
	Execute(req domain.Request, listener Listener) error
}

// Listener receives the outcome of one dispatched request. It is single use.
type Listener interface {
	Notify(outcome domain.Outcome)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(domain.Outcome)

func (f ListenerFunc) Notify(outcome domain.Outcome) { f(outcome) }

// ExecutorFunc adapts a function to an Executor advertising a fixed set of kinds.
type ExecutorFunc struct {
	Kinds domain.KindSet
	Fn    func(req domain.Request, listener Listener) error
}

func (e ExecutorFunc) SupportedKinds() domain.KindSet { return e.Kinds }

func (e ExecutorFunc) Execute(req domain.Request, listener Listener) error {
	return e.Fn(req, listener)
}
