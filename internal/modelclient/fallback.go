package modelclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var ErrAllCandidatesFailed = errors.New("all chat client candidates failed")

const (
	defaultTimeout = 60 * time.Second
	defaultBackoff = 250 * time.Millisecond
)

type RetryPolicy struct {
	Timeout    time.Duration
	RetryCount int
	Backoff    time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Timeout <= 0 {
		p.Timeout = defaultTimeout
	}
	if p.RetryCount < 0 {
		p.RetryCount = 0
	}
	if p.Backoff <= 0 {
		p.Backoff = defaultBackoff
	}
	return p
}

// FallbackClient tries candidates in order. Each candidate gets 1+RetryCount attempts with a
// per-attempt timeout and linear backoff between attempts.
type FallbackClient struct {
	purpose    Purpose
	candidates []Candidate
	policy     RetryPolicy
	metrics    Metrics
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	clients []Client
}

func NewFallbackClient(purpose Purpose, candidates []Candidate, policy RetryPolicy, metrics Metrics, logger *slog.Logger) (*FallbackClient, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("at least one candidate is required")
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackClient{
		purpose:    purpose,
		candidates: append([]Candidate(nil), candidates...),
		policy:     policy.normalized(),
		metrics:    metrics,
		logger:     logger,
		sleep:      sleepContext,
		clients:    make([]Client, len(candidates)),
	}, nil
}

func (c *FallbackClient) Purpose() Purpose {
	return c.purpose
}

func (c *FallbackClient) Candidates() []Candidate {
	return append([]Candidate(nil), c.candidates...)
}

func (c *FallbackClient) Complete(ctx context.Context, messages []Message) (string, error) {
	var lastErr error
	for index, candidate := range c.candidates {
		client, err := c.client(index)
		if err != nil {
			lastErr = err
			c.metrics.IncrementModelError(c.purpose, candidate.Provider)
			c.logger.Warn("model_client_init_failed", "purpose", c.purpose, "provider", candidate.Provider, "model", candidate.Model, "error", err)
			continue
		}

		for attempt := 0; attempt <= c.policy.RetryCount; attempt++ {
			if err := ctx.Err(); err != nil {
				return "", err
			}

			reply, elapsed, err := c.attempt(ctx, client, messages)
			if err == nil {
				c.metrics.ObserveModelLatency(c.purpose, candidate.Provider, candidate.Model, elapsed)
				if index > 0 {
					c.metrics.IncrementFallback(c.candidates[0].Provider, candidate.Provider, "exception")
				}
				return reply, nil
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}

			lastErr = err
			c.metrics.IncrementModelError(c.purpose, candidate.Provider)
			if errors.Is(err, context.DeadlineExceeded) {
				c.metrics.ObserveModelLatency(c.purpose, candidate.Provider, candidate.Model, elapsed)
				c.logger.Warn("model_call_timeout", "purpose", c.purpose, "provider", candidate.Provider, "model", candidate.Model,
					"attempt", attempt+1, "timeout", c.policy.Timeout.String())
			} else {
				c.logger.Warn("model_call_failed", "purpose", c.purpose, "provider", candidate.Provider, "model", candidate.Model,
					"attempt", attempt+1, "error", err)
			}

			if attempt < c.policy.RetryCount {
				if err := c.sleep(ctx, c.policy.Backoff*time.Duration(attempt+1)); err != nil {
					return "", err
				}
			}
		}
	}
	if lastErr != nil {
		return "", fmt.Errorf("%w: %v", ErrAllCandidatesFailed, lastErr)
	}
	return "", ErrAllCandidatesFailed
}

func (c *FallbackClient) attempt(ctx context.Context, client Client, messages []Message) (string, time.Duration, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.policy.Timeout)
	defer cancel()

	start := time.Now()
	reply, err := client.Complete(attemptCtx, messages)
	elapsed := time.Since(start)
	if err == nil {
		return reply, elapsed, nil
	}
	if attemptCtx.Err() != nil && ctx.Err() == nil {
		return "", elapsed, fmt.Errorf("model call timeout after %s: %w", c.policy.Timeout, context.DeadlineExceeded)
	}
	return "", elapsed, err
}

// client lazily builds the client for a candidate slot. The mutex guarantees one construction
// per slot even under concurrent first use.
func (c *FallbackClient) client(index int) (Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing := c.clients[index]; existing != nil {
		return existing, nil
	}
	candidate := c.candidates[index]
	if candidate.Factory == nil {
		return nil, fmt.Errorf("candidate %s/%s has no factory", candidate.Provider, candidate.Model)
	}
	client, err := candidate.Factory()
	if err != nil {
		return nil, fmt.Errorf("build %s client: %w", candidate.Provider, err)
	}
	c.clients[index] = client
	return client, nil
}

// Close releases cached clients that hold resources.
func (c *FallbackClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for index, client := range c.clients {
		if closer, ok := client.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		c.clients[index] = nil
	}
	return errors.Join(errs...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
