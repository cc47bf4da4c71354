package resilience

import "context"

// Guard retries transient failures of a call and counts the calls that still
// fail against a shared circuit breaker.
type Guard struct {
	Retry   RetryConfig
	Breaker *CircuitBreaker
}

// NewGuard creates a guard with its own breaker.
func NewGuard(retry RetryConfig, breaker CircuitBreakerConfig) *Guard {
	return &Guard{Retry: retry, Breaker: NewCircuitBreaker(breaker)}
}

// Call runs fn through the breaker, retrying inside each admitted call.
func Call[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	return ExecuteVal(ctx, g.Breaker, func(ctx context.Context) (T, error) {
		return DoVal(ctx, g.Retry, fn)
	})
}
