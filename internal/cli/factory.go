package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/opbridge"
	"github.com/aretw0/opbridge/internal/logging"
	"github.com/aretw0/opbridge/pkg/adapters/composite"
	"github.com/aretw0/opbridge/pkg/adapters/file"
	httpAdapter "github.com/aretw0/opbridge/pkg/adapters/http"
	redisAdapter "github.com/aretw0/opbridge/pkg/adapters/redis"
	"github.com/aretw0/opbridge/pkg/config"
	"github.com/aretw0/opbridge/pkg/observability"
	"github.com/aretw0/opbridge/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Host bundles a bridge with the executors and side channels built for it.
type Host struct {
	Bridge  *opbridge.Bridge
	Metrics *observability.Metrics
	Events  *httpAdapter.EventHub
	// Source is nil unless redis is configured.
	Source *redisAdapter.Source

	network *httpAdapter.Executor
	redis   *backend.Client
	logger  *slog.Logger
}

// NewHost builds the executors named by cfg, composes them and wraps them in a bridge.
// Redis file storage takes precedence over the local filesystem when redis.files is set.
func NewHost(cfg config.Config, logger *slog.Logger) (*Host, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	h := &Host{
		Metrics: observability.NewMetrics(""),
		Events:  httpAdapter.NewEventHub(logger),
		logger:  logger,
	}

	var executors []ports.Executor

	if cfg.Redis.Addr != "" {
		h.redis = backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		h.Source = redisAdapter.NewSource(h.redis, logger)
		if cfg.Redis.Files {
			executors = append(executors, redisAdapter.NewFromClient(h.redis,
				redisAdapter.WithPrefix(cfg.Redis.Prefix),
				redisAdapter.WithTTL(cfg.Redis.TTL.Std()),
				redisAdapter.WithLogger(logger),
			))
		}
	}

	if cfg.FilesEnabled() {
		mode, err := cfg.Files.Mode()
		if err != nil {
			return nil, err
		}
		executors = append(executors, file.New(
			file.WithRoot(cfg.Files.Root),
			file.WithPermissions(mode),
			file.WithLogger(logger),
		))
	}

	if cfg.NetworkEnabled() {
		opts := []httpAdapter.ExecutorOption{
			httpAdapter.WithExecutorLogger(logger),
			httpAdapter.WithTimeout(cfg.Network.Timeout.Std()),
		}
		if cfg.Network.RateLimit > 0 {
			opts = append(opts, httpAdapter.WithRateLimit(cfg.Network.RateLimit, cfg.Network.Burst))
		}
		if cfg.Network.UserAgent != "" {
			opts = append(opts, httpAdapter.WithUserAgent(cfg.Network.UserAgent))
		}
		if cfg.Network.MaxBodyBytes > 0 {
			opts = append(opts, httpAdapter.WithMaxBodyBytes(cfg.Network.MaxBodyBytes))
		}
		h.network = httpAdapter.NewExecutor(opts...)
		executors = append(executors, h.network)
	}

	if len(executors) == 0 {
		h.closeClients()
		return nil, errors.New("no executor enabled: enable network, files or redis.files")
	}

	hooks := h.Metrics.Hooks().Merge(h.Events.Hooks())
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		hooks = hooks.Merge(debugHooks(logger))
	}

	bridge, err := opbridge.New(composite.New(executors...),
		opbridge.WithLogger(logger),
		opbridge.WithLifecycleHooks(hooks),
		opbridge.WithGracePeriod(cfg.Stream.GracePeriod.Std()),
		opbridge.WithPollInterval(cfg.Stream.PollInterval.Std()),
		opbridge.WithPollMaxFailures(cfg.Stream.MaxFailures),
	)
	if err != nil {
		h.closeClients()
		return nil, fmt.Errorf("error initializing bridge: %w", err)
	}
	h.Bridge = bridge
	return h, nil
}

// Close terminates every subscription, then releases network and redis resources.
func (h *Host) Close(ctx context.Context) error {
	var err error
	if h.Bridge != nil {
		err = h.Bridge.Close(ctx)
	}
	return errors.Join(err, h.closeClients())
}

func (h *Host) closeClients() error {
	if h.network != nil {
		h.network.Close()
	}
	if h.redis != nil {
		return h.redis.Close()
	}
	return nil
}
