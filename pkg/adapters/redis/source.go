package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/opbridge/internal/logging"
	"github.com/aretw0/opbridge/pkg/ports"
	"github.com/aretw0/opbridge/pkg/stream"
	backend "github.com/redis/go-redis/v9"
)

// Source pushes messages published on Redis channels into subscriptions.
// It plays the host side of a push subscription: it registers its cancellation listener
// only once Redis confirmed the channel subscription.
type Source struct {
	client *backend.Client
	logger *slog.Logger
}

func NewSource(client *backend.Client, logger *slog.Logger) *Source {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Source{client: client, logger: logger}
}

// Publish sends payload on channel.
func (s *Source) Publish(ctx context.Context, channel, payload string) error {
	if err := s.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Messages returns a StartFunc publishing raw payloads of channel.
func (s *Source) Messages(channel string) stream.StartFunc[string] {
	return Feed(s, channel, func(payload string) (string, error) { return payload, nil })
}

// Feed returns a StartFunc publishing every message of channel, decoded with decode.
// Messages that fail to decode are logged and skipped.
func Feed[T any](s *Source, channel string, decode func(string) (T, error)) stream.StartFunc[T] {
	return func(pub ports.Publisher[T]) error {
		ctx, cancel := context.WithCancel(context.Background())
		sub := s.client.Subscribe(ctx, channel)
		go pump(ctx, cancel, s.logger.With("channel", channel), sub, pub, decode)
		return nil
	}
}

func pump[T any](ctx context.Context, cancel context.CancelFunc, logger *slog.Logger, sub *backend.PubSub, pub ports.Publisher[T], decode func(string) (T, error)) {
	defer sub.Close()
	defer cancel()

	if _, err := sub.Receive(ctx); err != nil {
		logger.Warn("subscribe failed", "err", err)
		if f, ok := pub.(interface{ Fail(error) }); ok {
			f.Fail(fmt.Errorf("redis subscribe: %w", err))
		} else {
			pub.Finished()
		}
		return
	}
	pub.RegisterCancellationListener(ports.CancellationFunc(cancel))
	logger.Debug("subscribed")

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			pub.Finished()
			return
		case msg, ok := <-msgs:
			if !ok {
				pub.Finished()
				return
			}
			v, err := decode(msg.Payload)
			if err != nil {
				logger.Warn("skipping undecodable message", "err", err)
				continue
			}
			pub.OnValue(v)
		}
	}
}
