package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/shaiso/Retoucher/internal/domain"
	"github.com/shaiso/Retoucher/internal/provider"
	"github.com/shaiso/Retoucher/internal/telemetry"
)

// Result — результат одного успешного fanout-вызова.
// Variant привязывает значение к модели: позиция в срезе результатов
// ничего не означает.
type Result[R any] struct {
	Variant string
	Value   R
}

// callFunc — один вызов модели для конкретного варианта.
type callFunc[R any] func(ctx context.Context, variant provider.Variant) (R, error)

// runAll выполняет по одному независимому вызову на каждый вариант,
// параллельно, с ограничением counting semaphore и retry на каждый вызов.
//
// Вызов, исчерпавший попытки, выбрасывается из результата.
// Пустой результат означает, что упали все вызовы — решение об ошибке
// принимает фазовая обёртка.
func runAll[R any](ctx context.Context, phase string, variants []provider.Variant, limit int64, policy *domain.RetryPolicy, logger *slog.Logger, call callFunc[R]) []Result[R] {
	if limit <= 0 {
		limit = int64(len(variants))
	}

	sem := semaphore.NewWeighted(limit)

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []Result[R]
	)

	start := time.Now()

	for _, variant := range variants {
		wg.Add(1)
		go func(v provider.Variant) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)

			value, err := callWithRetry(ctx, v, policy, logger, call)
			if err != nil {
				telemetry.FanoutCalls.WithLabelValues(phase, "dropped").Inc()
				logger.Warn("fanout call dropped",
					"phase", phase,
					"variant", v.ID,
					"error", err,
				)
				return
			}

			telemetry.FanoutCalls.WithLabelValues(phase, "ok").Inc()

			mu.Lock()
			results = append(results, Result[R]{Variant: v.ID, Value: value})
			mu.Unlock()
		}(variant)
	}

	wg.Wait()
	telemetry.ObservePhase(phase, start)

	return results
}

// callWithRetry выполняет вызов с retry согласно policy.
func callWithRetry[R any](ctx context.Context, v provider.Variant, policy *domain.RetryPolicy, logger *slog.Logger, call callFunc[R]) (R, error) {
	maxAttempts := 1
	if policy != nil && policy.MaxAttempts > 0 {
		maxAttempts = policy.MaxAttempts
	}

	var zero R
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		value, err := call(ctx, v)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		delay := Backoff(attempt, policy)

		logger.Debug("retrying model call",
			"variant", v.ID,
			"attempt", attempt,
			"delay", delay,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, fmt.Errorf("%d attempt(s) exhausted: %w", maxAttempts, lastErr)
}
