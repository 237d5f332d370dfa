// Package gateway sends prompts to a language model backend.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/dusk-indust/lineage/internal/config"
)

// Gateway sends one prompt and returns the model's reply.
type Gateway interface {
	Send(ctx context.Context, prompt string) (string, error)
}

// Prober is implemented by gateways that can check their backend is up
// without spending a generation.
type Prober interface {
	Ping(ctx context.Context) error
}

// ErrEmptyResponse is returned when the backend answers with no text.
var ErrEmptyResponse = errors.New("gateway: empty response")

// HTTPError is a non-2xx reply from the backend.
type HTTPError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("gateway: %s: HTTP %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Option configures a gateway client.
type Option func(*base)

// WithTimeout sets the HTTP client timeout. It applies to a client given
// through WithHTTPClient in either order, without changing that client.
func WithTimeout(d time.Duration) Option {
	return func(b *base) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) Option {
	return func(b *base) {
		if hc != nil {
			b.http = hc
		}
	}
}

// WithRateLimit caps outgoing requests at rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(b *base) {
		if rps <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.logger = l
		}
	}
}

// base holds the transport shared by every provider.
type base struct {
	provider string
	http     *http.Client
	timeout  time.Duration
	limiter  *rate.Limiter
	logger   *slog.Logger
}

func newBase(provider string, opts []Option) base {
	b := base{
		provider: provider,
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(&b)
	}
	if b.timeout > 0 && b.http.Timeout != b.timeout {
		// The client may be shared, e.g. http.DefaultClient.
		hc := *b.http
		hc.Timeout = b.timeout
		b.http = &hc
	}
	return b
}

// do sends req after waiting on the limiter and returns the body of a
// 2xx reply.
func (b *base) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("gateway: %s: rate limit: %w", b.provider, err)
		}
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, fmt.Errorf("gateway: %s: create request: %w", b.provider, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: %s: %w", b.provider, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway: %s: read response: %w", b.provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Provider: b.provider, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	return data, nil
}

// observe records metrics and a debug line for one Send.
func (b *base) observe(start time.Time, promptLen, replyLen int, err error) {
	elapsed := time.Since(start)
	recordCall(b.provider, elapsed, err)
	if err != nil {
		b.logger.Warn("model call failed", "provider", b.provider, "elapsed", elapsed, "error", err)
		return
	}
	b.logger.Debug("model call", "provider", b.provider, "elapsed", elapsed,
		"promptBytes", promptLen, "replyBytes", replyLen)
}

// New builds the gateway selected by cfg. Kind "none" yields nil.
func New(cfg config.GatewayConfig, opts ...Option) (Gateway, error) {
	opts = append([]Option{
		WithTimeout(cfg.Timeout),
		WithRateLimit(cfg.RequestsPerSecond, 1),
	}, opts...)

	switch cfg.Kind {
	case config.GatewayOllama:
		return NewOllama(cfg.Endpoint, cfg.Model, OllamaOptions{
			Temperature:   cfg.Temperature,
			NumPredict:    cfg.NumPredict,
			TopK:          cfg.TopK,
			TopP:          cfg.TopP,
			RepeatPenalty: cfg.RepeatPenalty,
		}, opts...), nil
	case config.GatewayA2A:
		return NewA2A(cfg.Endpoint, opts...), nil
	case config.GatewayNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("gateway: unknown kind %q", cfg.Kind)
	}
}
