package fanout

import (
	"time"

	"github.com/shaiso/Retoucher/internal/domain"
)

// DefaultPolicy — политика retry по умолчанию для вызовов моделей.
func DefaultPolicy() *domain.RetryPolicy {
	return &domain.RetryPolicy{
		MaxAttempts:    3,
		Backoff:        domain.BackoffExponential,
		InitialDelayMs: 1000,
		MaxDelayMs:     15000,
	}
}

// Backoff вычисляет задержку перед повторной попыткой.
func Backoff(attempt int, policy *domain.RetryPolicy) time.Duration {
	if policy == nil {
		return time.Second
	}

	initialDelay := time.Duration(policy.InitialDelayMs) * time.Millisecond
	if initialDelay <= 0 {
		initialDelay = time.Second
	}

	maxDelay := time.Duration(policy.MaxDelayMs) * time.Millisecond
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	var delay time.Duration
	switch policy.Backoff {
	case domain.BackoffExponential:
		// delay = initialDelay * 2^(attempt-1)
		delay = initialDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
				break
			}
		}
	default:
		// "fixed" или неизвестный — используем initialDelay
		delay = initialDelay
	}

	if delay > maxDelay {
		delay = maxDelay
	}

	return delay
}
