// Package redis provides host adapters backed by Redis: an executor that stores files as
// keys and a pub/sub source that pushes values into subscriptions.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/opbridge/internal/logging"
	"github.com/aretw0/opbridge/pkg/domain"
	"github.com/aretw0/opbridge/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// maxWriteAttempts bounds optimistic-transaction retries when a key changes under a write.
const maxWriteAttempts = 16

// Executor implements FileRead and FileWrite on Redis keys. The absolute path, prefixed,
// is the key. Writes are optimistic transactions (WATCH/MULTI) so prepend, append and abort
// hold across concurrent writers.
type Executor struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type Option func(*Executor)

// WithTTL sets the expiration of written keys.
func WithTTL(ttl time.Duration) Option {
	return func(e *Executor) {
		e.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(e *Executor) {
		e.prefix = prefix
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// New creates a Redis executor with its own client.
func New(address, password string, db int, opts ...Option) *Executor {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a Redis executor from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Executor {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		client: client,
		prefix: "opbridge:file:",
		logger: logging.NewNop(),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) key(path string) string {
	return e.prefix + path
}

func (e *Executor) indexKey() string {
	return e.prefix + "index"
}

func (e *Executor) SupportedKinds() domain.KindSet {
	return domain.NewKindSet(domain.KindFileRead, domain.KindFileWrite)
}

func (e *Executor) Execute(req domain.Request, listener ports.Listener) error {
	if err := e.ctx.Err(); err != nil {
		return fmt.Errorf("redis executor closed: %w", err)
	}
	switch r := req.(type) {
	case domain.FileReadRequest:
		go func() { listener.Notify(e.Read(e.ctx, r)) }()
	case domain.FileWriteRequest:
		go func() { listener.Notify(e.Write(e.ctx, r)) }()
	default:
		return fmt.Errorf("redis executor cannot run %s requests", req.Kind())
	}
	return nil
}

// Read runs a read synchronously.
func (e *Executor) Read(ctx context.Context, req domain.FileReadRequest) domain.Outcome {
	val, err := e.client.Get(ctx, e.key(req.Path)).Bytes()
	switch {
	case err == nil:
		return domain.FileReadSuccess(domain.FileExists(req.Path, val))
	case errors.Is(err, backend.Nil):
		return domain.FileReadSuccess(domain.FileDoesNotExist(req.Path))
	default:
		return domain.FileReadFailure(&domain.FileReadError{Path: req.Path, Underlying: err.Error()})
	}
}

// Write runs a write synchronously.
func (e *Executor) Write(ctx context.Context, req domain.FileWriteRequest) domain.Outcome {
	key := e.key(req.Path)
	var result domain.FileWriteResponse
	var existed bool

	txf := func(tx *backend.Tx) error {
		existing, err := tx.Get(ctx, key).Bytes()
		existed = err == nil
		if err != nil && !errors.Is(err, backend.Nil) {
			return err
		}
		contents, abort := domain.ApplyStrategy(existing, existed, req)
		if abort {
			result = domain.OverwriteAborted()
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, key, contents, e.ttl)
			pipe.ZAdd(ctx, e.indexKey(), backend.Z{
				Score:  float64(time.Now().Unix()),
				Member: req.Path,
			})
			return nil
		})
		if err != nil {
			return err
		}
		result = domain.DidWrite(existed)
		return nil
	}

	var err error
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		err = e.client.Watch(ctx, txf, key)
		if !errors.Is(err, backend.TxFailedErr) {
			break
		}
		e.logger.Debug("write raced, retrying", "path", req.Path, "attempt", attempt+1)
	}
	if err != nil {
		code := domain.FileWriteErrCreate
		if existed {
			code = domain.FileWriteErrHandle
		}
		return domain.FileWriteFailure(&domain.FileWriteError{Code: code, Path: req.Path, Underlying: err.Error()})
	}
	return domain.FileWriteSuccess(result)
}

// Paths lists the paths written through this executor, oldest write first. Expired keys are
// pruned from the index on the way.
func (e *Executor) Paths(ctx context.Context) ([]string, error) {
	paths, err := e.client.ZRange(ctx, e.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list paths: %w", err)
	}
	if e.ttl == 0 || len(paths) == 0 {
		return paths, nil
	}

	live := paths[:0]
	for _, p := range paths {
		n, err := e.client.Exists(ctx, e.key(p)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check %s: %w", p, err)
		}
		if n == 1 {
			live = append(live, p)
			continue
		}
		e.client.ZRem(ctx, e.indexKey(), p)
	}
	return live, nil
}

// Close aborts in-flight requests and closes the client.
func (e *Executor) Close() error {
	e.cancel()
	return e.client.Close()
}
