package reliability

import (
	"sync"

	"github.com/sony/gobreaker"

	"mira-sales-pipeline/internal/config"
	"mira-sales-pipeline/internal/pkg/logger"
)

// BreakerRegistry hands out one circuit breaker per named downstream
// dependency. Breakers are created lazily and shared process-wide.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	cfg      config.ReliabilityConfig
	logger   *logger.Logger
}

func NewBreakerRegistry(cfg config.ReliabilityConfig, log *logger.Logger) *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		cfg:      cfg,
		logger:   log,
	}
}

func (r *BreakerRegistry) Get(name string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if breaker, ok := r.breakers[name]; ok {
		return breaker
	}

	failureThreshold := uint32(r.cfg.FailureThreshold)
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(r.cfg.SuccessThreshold),
		Timeout:     r.cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn("Circuit breaker state changed",
				"dependency", name,
				"from", from.String(),
				"to", to.String())
		},
	})

	r.breakers[name] = breaker
	return breaker
}

// States reports the current state of every known breaker.
func (r *BreakerRegistry) States() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	states := make(map[string]string, len(r.breakers))
	for name, breaker := range r.breakers {
		states[name] = breaker.State().String()
	}
	return states
}
