package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig tunes the breaker guarding controller API calls. A
// tripped breaker fails provisioning requests immediately instead of holding
// a batch run hostage to a controller outage.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in logs; there is one per controller
	// client.
	Name string

	// MaxRequests caps how many controller calls may go through while
	// half-open. Default: 1
	MaxRequests uint32

	// Interval is the cyclic period for clearing counts while closed.
	// Default: 0 (counts accumulate for the life of the run)
	Interval time.Duration

	// Timeout is how long the breaker stays open before letting a trial
	// controller call through. Default: 60 seconds
	Timeout time.Duration

	// ReadyToTrip decides when accumulated failures open the breaker.
	// If nil, DefaultReadyToTrip applies.
	ReadyToTrip func(counts gobreaker.Counts) bool

	// OnStateChange is called on every state transition.
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultCircuitBreakerConfig returns the breaker settings used for
// controller clients.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     60 * time.Second,
		ReadyToTrip: DefaultReadyToTrip,
	}
}

// DefaultReadyToTrip opens the breaker once at least 5 controller calls have
// been made and half or more of them failed. A provisioning run issues one
// call per resource, so a misbehaving controller trips within the first
// handful of resources rather than after the whole batch.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
	return counts.Requests >= 5 && failureRatio >= 0.5
}

// NewCircuitBreaker builds a gobreaker instance from the configuration.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: cfg.ReadyToTrip,
	}

	if cfg.OnStateChange != nil {
		settings.OnStateChange = cfg.OnStateChange
	}

	return gobreaker.NewCircuitBreaker[T](settings)
}
