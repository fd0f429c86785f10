package ports

// Publisher is the consuming end of a stream, driven by the producing side.
// The engine implements it for host-driven streams and the host implements it for
// engine-driven streams.
type Publisher[T any] interface {
	// OnValue delivers the next value. It must not block for long.
	OnValue(value T)

	// Finished tells the consumer that the producer stopped, either naturally or because
	// it acknowledged a cancellation. No value follows.
	Finished()

	// RegisterCancellationListener hands the consumer a way to stop the producer. The
	// producer registers at most one listener, after it confirmed the subscription.
	RegisterCancellationListener(listener CancellationListener)
}

// CancellationListener is notified when the other side of a stream stops.
type CancellationListener interface {
	NotifyCancelled()
}

// CancellationFunc adapts a function to the CancellationListener interface.
type CancellationFunc func()

func (f CancellationFunc) NotifyCancelled() { f() }
