package stream

import (
	"context"
	"errors"

	"github.com/aretw0/opbridge/pkg/domain"
	"github.com/aretw0/opbridge/pkg/ports"
)

// Forward pumps sub into a publisher owned by the host, in order, until either side stops.
// The host stops the stream through the cancellation listener registered on host. host
// receives Finished exactly once, when Forward returns.
func Forward[T any](ctx context.Context, sub *Subscription[T], host ports.Publisher[T]) error {
	host.RegisterCancellationListener(ports.CancellationFunc(sub.Cancel))
	defer host.Finished()

	for {
		v, err := sub.Next(ctx)
		switch {
		case err == nil:
			host.OnValue(v)
		case errors.Is(err, domain.ErrStreamFinished), errors.Is(err, domain.ErrSubscriptionCancelled):
			return nil
		case ctx.Err() != nil:
			sub.Cancel()
			return err
		default:
			return err
		}
	}
}
