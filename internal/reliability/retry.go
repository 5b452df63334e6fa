package reliability

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"

	"mira-sales-pipeline/internal/config"
	"mira-sales-pipeline/internal/pkg/logger"
)

// ErrCircuitOpen is returned when the dependency's breaker rejects the call
// without attempting it.
var ErrCircuitOpen = errors.New("circuit breaker open")

// Executor wraps downstream calls with a per-dependency circuit breaker,
// bounded exponential-backoff retries and metrics. Cancellation of the caller
// context is never retried; only transient call failures are.
type Executor struct {
	cfg      config.ReliabilityConfig
	breakers *BreakerRegistry
	metrics  *Metrics
	logger   *logger.Logger
}

func NewExecutor(cfg config.ReliabilityConfig, breakers *BreakerRegistry, metrics *Metrics, log *logger.Logger) *Executor {
	return &Executor{
		cfg:      cfg,
		breakers: breakers,
		metrics:  metrics,
		logger:   log,
	}
}

// Do runs call against the named dependency. Each attempt gets its own call
// timeout; attempts stop once the breaker opens, the parent context is done,
// or MaxAttempts is exhausted. The last error is returned.
func (e *Executor) Do(ctx context.Context, dependency, operation string, call func(ctx context.Context) error) error {
	startTime := time.Now()
	breaker := e.breakers.Get(dependency)

	attempt := 0
	wrapped := func() (struct{}, error) {
		attempt++

		_, err := breaker.Execute(func() (interface{}, error) {
			callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
			defer cancel()
			return nil, call(callCtx)
		})
		if err == nil {
			return struct{}{}, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return struct{}{}, backoff.Permanent(ErrCircuitOpen)
		}

		if ctx.Err() != nil {
			// the whole turn was cancelled or timed out; do not retry
			return struct{}{}, backoff.Permanent(err)
		}

		e.logger.WithFields(logger.Fields{
			"dependency": dependency,
			"operation":  operation,
			"attempt":    attempt,
		}).WithError(err).Warn("Downstream call failed, will retry")

		return struct{}{}, err
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = e.cfg.InitialDelay
	expo.MaxInterval = e.cfg.MaxDelay
	expo.Multiplier = e.cfg.Multiplier
	expo.RandomizationFactor = e.cfg.Jitter

	_, err := backoff.Retry(ctx, wrapped,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(e.cfg.MaxAttempts)))

	duration := time.Since(startTime)
	e.metrics.Record(dependency+"."+operation, duration, err)
	e.logger.LogService(dependency, operation, duration, map[string]interface{}{
		"attempts": attempt,
	}, err)

	return err
}

// BreakerStates exposes the registry's view for stats reporting.
func (e *Executor) BreakerStates() map[string]string {
	return e.breakers.States()
}
