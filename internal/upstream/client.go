// Package upstream talks to the TFT data service that resolves batched
// operations. One drained batch becomes one POST, whatever its size.
package upstream

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"tftgg/internal/config"
	"tftgg/internal/gql"
)

// Client is the production batch executor. The circuit breaker in front of
// it sheds load while the data service keeps failing.
type Client struct {
	http   *resty.Client
	brk    *breaker
	logger zerolog.Logger
}

func NewClient(cfg config.UpstreamConfig, logger zerolog.Logger) *Client {
	log := logger.With().Str("component", "upstream").Logger()

	hc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.GetTimeoutDuration()).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	hc.JSONMarshal = json.Marshal
	hc.JSONUnmarshal = json.Unmarshal
	hc.SetLogger(restyLogger{log})

	if cfg.IsRetryEnabled() {
		hc.SetRetryCount(cfg.RetryMaxAttempts).
			SetRetryWaitTime(cfg.GetRetryWaitDuration()).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				// Connection errors only; HTTP errors feed the breaker instead.
				return err != nil
			})
	}

	var (
		threshold int
		recovery  time.Duration
	)
	if cfg.Breaker != nil {
		threshold = cfg.Breaker.FailureThreshold
		recovery = cfg.Breaker.GetRecoveryTimeoutDuration()
	}

	return &Client{
		http:   hc,
		brk:    newBreaker(cfg.IsBreakerEnabled(), threshold, recovery),
		logger: log,
	}
}

// ExecuteBatch resolves every argument set of operation in one round trip.
// Results are positional; a null slot means no data for that argument set.
func (c *Client) ExecuteBatch(ctx context.Context, operation string, argSets []gql.Args) ([]gql.Result, error) {
	if !c.brk.allow() {
		return nil, ErrCircuitOpen
	}

	var out batchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(batchRequest{ArgSets: argSets}).
		SetResult(&out).
		Post(fmt.Sprintf("/operations/%s/batch", operation))
	if err != nil {
		c.brk.recordFailure()
		return nil, fmt.Errorf("data service request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		c.brk.recordFailure()
		return nil, fmt.Errorf("data service returned %d: %s", resp.StatusCode(), resp.String())
	}

	c.brk.recordSuccess()
	c.logger.Debug().
		Str("operation", operation).
		Int("args", len(argSets)).
		Dur("took", resp.Time()).
		Msg("batch resolved")

	return out.Results, nil
}

// ExecutorFor returns the batch executor bound to one operation. The
// signature matches the batcher's executor contract.
func (c *Client) ExecutorFor(operation string) func(ctx context.Context, argSets []gql.Args) ([]gql.Result, error) {
	return func(ctx context.Context, argSets []gql.Args) ([]gql.Result, error) {
		return c.ExecuteBatch(ctx, operation, argSets)
	}
}

// Ping probes the data service health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("data service unreachable: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("data service returned %d", resp.StatusCode())
	}
	return nil
}

// BreakerState reports the circuit breaker state (closed, open, half-open).
func (c *Client) BreakerState() string {
	return c.brk.currentState()
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.GetClient().CloseIdleConnections()
}

// restyLogger routes the HTTP client's internal messages through zerolog.
type restyLogger struct {
	l zerolog.Logger
}

func (r restyLogger) Errorf(format string, v ...any) { r.l.Error().Msgf(format, v...) }
func (r restyLogger) Warnf(format string, v ...any)  { r.l.Warn().Msgf(format, v...) }
func (r restyLogger) Debugf(format string, v ...any) { r.l.Debug().Msgf(format, v...) }
