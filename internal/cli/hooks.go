package cli

import (
	"context"
	"log/slog"

	"github.com/aretw0/opbridge/pkg/domain"
)

func debugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDispatch: func(ctx context.Context, e *domain.DispatchEvent) {
			logger.Debug("Dispatch", "kind", e.Kind.String(), "target", e.Target)
		},
		OnOutcome: func(ctx context.Context, e *domain.OutcomeEvent) {
			if e.Err != nil {
				logger.Debug("Outcome (Failure)", "kind", e.Kind.String(), "target", e.Target, "err", e.Err)
			} else {
				logger.Debug("Outcome (Success)", "kind", e.Kind.String(), "target", e.Target, "duration", e.Duration)
			}
		},
		OnSubscriptionState: func(ctx context.Context, e *domain.SubscriptionEvent) {
			logger.Debug("Subscription", "id", e.SubscriptionID, "name", e.Name, "from", e.From, "to", e.To, "reason", e.Reason)
		},
	}
}
