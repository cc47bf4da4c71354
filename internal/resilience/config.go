package resilience

import (
	"time"

	"github.com/sells-group/lease-match/internal/config"
)

// FromBatchConfig derives the match write retry and breaker settings from
// the batch configuration.
func FromBatchConfig(b config.BatchConfig) (RetryConfig, CircuitBreakerConfig) {
	retry := DefaultRetryConfig()
	if b.RetryAttempts > 0 {
		retry.MaxAttempts = b.RetryAttempts
	}
	if b.RetryBackoffMs > 0 {
		retry.InitialBackoff = time.Duration(b.RetryBackoffMs) * time.Millisecond
	}

	breaker := DefaultCircuitBreakerConfig()
	if b.FailureThreshold > 0 {
		breaker.FailureThreshold = b.FailureThreshold
	}
	// A run lasts minutes; an open breaker stays open for the rest of it.
	if t := b.RunTimeout(); t > 0 {
		breaker.ResetTimeout = t
	}
	return retry, breaker
}
