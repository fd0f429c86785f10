package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/aretw0/opbridge/internal/logging"
	"github.com/aretw0/opbridge/pkg/domain"
	"github.com/aretw0/opbridge/pkg/ports"
	"golang.org/x/time/rate"
)

// DefaultMaxBodyBytes caps how much of a response body is read.
const DefaultMaxBodyBytes = 10 << 20

// Executor performs network requests with a net/http client.
// Non-2xx responses are reported as NetworkErrStatus failures whose GatewayMessage carries
// the response body when it is valid UTF-8.
type Executor struct {
	client    *http.Client
	limiter   *rate.Limiter
	maxBody   int64
	userAgent string
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// ExecutorOption configures the Executor.
type ExecutorOption func(*Executor)

// WithClient replaces the default client.
func WithClient(client *http.Client) ExecutorOption {
	return func(e *Executor) {
		e.client = client
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.client.Timeout = d
	}
}

// WithRateLimit allows at most rps requests per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) ExecutorOption {
	return func(e *Executor) {
		if rps <= 0 {
			e.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMaxBodyBytes caps the bytes read from a response body.
func WithMaxBodyBytes(n int64) ExecutorOption {
	return func(e *Executor) {
		e.maxBody = n
	}
}

// WithUserAgent sets the User-Agent of requests that do not carry one.
func WithUserAgent(ua string) ExecutorOption {
	return func(e *Executor) {
		e.userAgent = ua
	}
}

// WithExecutorLogger sets the structured logger.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

func NewExecutor(opts ...ExecutorOption) *Executor {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		client:  &http.Client{Timeout: 30 * time.Second},
		maxBody: DefaultMaxBodyBytes,
		logger:  logging.NewNop(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) SupportedKinds() domain.KindSet {
	return domain.NewKindSet(domain.KindNetwork)
}

// Execute starts the request on its own goroutine. It fails synchronously only for
// non-network requests or after Close.
func (e *Executor) Execute(req domain.Request, listener ports.Listener) error {
	nr, ok := req.(domain.NetworkRequest)
	if !ok {
		return fmt.Errorf("http executor cannot run %s requests", req.Kind())
	}
	if err := e.ctx.Err(); err != nil {
		return fmt.Errorf("http executor closed: %w", err)
	}
	go func() { listener.Notify(e.Do(e.ctx, nr)) }()
	return nil
}

// Close aborts in-flight requests; their listeners receive transport failures.
func (e *Executor) Close() {
	e.cancel()
}

// Do runs one request synchronously.
func (e *Executor) Do(ctx context.Context, req domain.NetworkRequest) domain.Outcome {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return transportFailure(req.URL, fmt.Errorf("rate limit: %w", err))
		}
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return domain.NetworkFailure(&domain.NetworkError{
			Code:       domain.NetworkErrInvalidURL,
			URL:        req.URL,
			Underlying: err.Error(),
		})
	}
	for _, h := range req.Headers {
		httpReq.Header.Add(h.Name, h.Value)
	}
	if e.userAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", e.userAgent)
	}

	start := time.Now()
	resp, err := e.client.Do(httpReq)
	if err != nil {
		e.logger.Debug("request failed", "method", req.Method, "url", req.URL, "err", err)
		return transportFailure(req.URL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBody))
	if err != nil {
		return transportFailure(req.URL, fmt.Errorf("read body: %w", err))
	}
	e.logger.Debug("request done", "method", req.Method, "url", req.URL, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		netErr := &domain.NetworkError{
			Code:       domain.NetworkErrStatus,
			URL:        req.URL,
			StatusCode: uint16(resp.StatusCode),
			Underlying: http.StatusText(resp.StatusCode),
		}
		if len(data) > 0 && utf8.Valid(data) {
			netErr.GatewayMessage = string(data)
		}
		return domain.NetworkFailure(netErr)
	}

	return domain.NetworkSuccess(domain.NetworkResponse{
		StatusCode: uint16(resp.StatusCode),
		Headers:    headersFrom(resp.Header),
		Body:       data,
	})
}

// headersFrom flattens response headers in canonical-name order.
func headersFrom(h http.Header) domain.Headers {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	var out domain.Headers
	for _, name := range names {
		for _, v := range h[name] {
			out = out.Add(name, v)
		}
	}
	return out
}

func transportFailure(url string, err error) domain.Outcome {
	msg := err.Error()
	if errors.Is(err, context.Canceled) {
		msg = "request aborted: " + msg
	}
	return domain.NetworkFailure(&domain.NetworkError{
		Code:       domain.NetworkErrTransport,
		URL:        url,
		Underlying: msg,
	})
}
