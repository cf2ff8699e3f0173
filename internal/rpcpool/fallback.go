package rpcpool

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/ncasillas/txpilot/internal/chain"
	clierr "github.com/ncasillas/txpilot/internal/errors"
)

const (
	defaultMaxRetries     = 2
	defaultAttemptTimeout = 10 * time.Second
	defaultBackoffStep    = 500 * time.Millisecond
	defaultBackoffCap     = 3 * time.Second
)

// CallFunc is one RPC operation executed against a concrete endpoint.
type CallFunc func(ctx context.Context, url string) error

// Report says which endpoint served the call and which were tried.
type Report struct {
	Provider  string
	URL       string
	Attempted []string
}

// FallbackClient walks a chain's endpoint set in health-then-priority
// order: endpoints in usable condition (healthy, unknown, or stale
// enough to deserve a retry) keep their static priority; endpoints with
// a fresh failure on record sort after all of them. Each endpoint gets
// up to maxRetries attempts with a linear, capped backoff between them,
// and is marked unhealthy only when that budget is exhausted.
type FallbackClient struct {
	endpoints      []chain.Endpoint
	health         *HealthTracker
	maxRetries     int
	attemptTimeout time.Duration
	backoffStep    time.Duration
	backoffCap     time.Duration
	logger         *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewFallbackClient(endpoints []chain.Endpoint, health *HealthTracker, logger *slog.Logger) *FallbackClient {
	if health == nil {
		health = NewHealthTracker(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackClient{
		endpoints:      endpoints,
		health:         health,
		maxRetries:     defaultMaxRetries,
		attemptTimeout: defaultAttemptTimeout,
		backoffStep:    defaultBackoffStep,
		backoffCap:     defaultBackoffCap,
		logger:         logger,
		sleep:          sleepCtx,
	}
}

func (c *FallbackClient) Health() *HealthTracker { return c.health }

// Call runs fn against endpoints in fallback order until one succeeds.
func (c *FallbackClient) Call(ctx context.Context, fn CallFunc) (Report, error) {
	ordered := c.order()
	report := Report{Attempted: make([]string, 0, len(ordered))}
	var lastErr error

	for _, ep := range ordered {
		report.Attempted = append(report.Attempted, ep.URL)

		for attempt := 1; attempt <= c.maxRetries; attempt++ {
			start := time.Now()
			attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
			err := fn(attemptCtx, ep.URL)
			cancel()

			if err == nil {
				c.health.RecordSuccess(ep.URL, time.Since(start))
				report.Provider = ep.Provider
				report.URL = ep.URL
				return report, nil
			}
			lastErr = err
			c.logger.Debug("rpc attempt failed",
				"provider", ep.Provider, "url", ep.URL, "attempt", attempt, "error", err)

			if ctx.Err() != nil {
				return report, clierr.Wrap(clierr.CodeUnavailable, "rpc call canceled", ctx.Err())
			}
			if attempt < c.maxRetries {
				delay := time.Duration(attempt) * c.backoffStep
				if delay > c.backoffCap {
					delay = c.backoffCap
				}
				if err := c.sleep(ctx, delay); err != nil {
					return report, clierr.Wrap(clierr.CodeUnavailable, "rpc call canceled", err)
				}
				continue
			}
			// Only the exhausted retry budget counts against the
			// endpoint's health; a recovered retry leaves no mark.
			c.health.RecordFailure(ep.URL, err)
		}
	}

	return report, clierr.Wrap(clierr.CodeAllProvidersFailed,
		"all rpc endpoints failed", lastErr)
}

// order partitions endpoints into usable and freshly-failed, keeps the
// static priority inside each partition, and concatenates them.
func (c *FallbackClient) order() []chain.Endpoint {
	usable := make([]chain.Endpoint, 0, len(c.endpoints))
	failing := make([]chain.Endpoint, 0)
	for _, ep := range c.endpoints {
		if c.health.Usable(ep.URL) {
			usable = append(usable, ep)
		} else {
			failing = append(failing, ep)
		}
	}
	byPriority := func(eps []chain.Endpoint) {
		sort.SliceStable(eps, func(i, j int) bool { return eps[i].Priority < eps[j].Priority })
	}
	byPriority(usable)
	byPriority(failing)
	return append(usable, failing...)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
