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

// Имена фаз (для метрик и логов).
const (
	PhaseEnhance  = "enhance"
	PhaseGenerate = "generate"
	PhaseValidate = "validate"
)

// Лимиты параллельности по умолчанию.
const (
	DefaultEnhanceLimit  = 5
	DefaultGenerateLimit = 3
	DefaultValidateLimit = 3

	// DefaultInterCallDelay — пауза между последовательными
	// validation-вызовами в пошаговом режиме.
	DefaultInterCallDelay = 2 * time.Second
)

// EnhanceCaller — fanout фазы enhancement.
//
// По одному вызову текстовой модели на каждый сконфигурированный вариант.
type EnhanceCaller struct {
	Enhancer provider.Enhancer
	Variants []provider.Variant
	Limit    int64
	Policy   *domain.RetryPolicy
	Logger   *slog.Logger
}

// Run выполняет fanout enhancement-вызовов.
//
// images может быть nil: на итерациях после первой изображения
// не передаются.
func (c *EnhanceCaller) Run(ctx context.Context, instruction string, images []domain.InputImage) ([]domain.EnhancedPrompt, error) {
	if len(c.Variants) == 0 {
		return nil, fmt.Errorf("%w: enhancement", ErrNoVariants)
	}

	limit := c.Limit
	if limit <= 0 {
		limit = DefaultEnhanceLimit
	}

	results := runAll(ctx, PhaseEnhance, c.Variants, limit, c.Policy, c.Logger,
		func(ctx context.Context, v provider.Variant) (*domain.EnhancedPrompt, error) {
			return c.Enhancer.Enhance(ctx, instruction, images, v)
		})

	if len(results) == 0 {
		return nil, ErrAllEnhanceFailed
	}

	prompts := make([]domain.EnhancedPrompt, 0, len(results))
	for _, r := range results {
		prompts = append(prompts, *r.Value)
	}
	return prompts, nil
}

// GenerateCaller — fanout фазы generation.
//
// Каждый prompt потребляется ровно одним вызовом генерации
// того же варианта модели, который этот prompt породил.
type GenerateCaller struct {
	Generator provider.Generator
	Variants  []provider.Variant
	Limit     int64
	Policy    *domain.RetryPolicy
	Logger    *slog.Logger
}

// Run выполняет fanout generation-вызовов по списку prompts.
//
// Инвариант на выходе: len(candidates) <= len(prompts) — упавшие
// вызовы выбрасываются, не ретраятся повторно в рамках фазы.
func (c *GenerateCaller) Run(ctx context.Context, prompts []domain.EnhancedPrompt, images []domain.InputImage) ([]*domain.Candidate, error) {
	if len(prompts) == 0 {
		return nil, fmt.Errorf("%w: generation", ErrNoVariants)
	}

	byID := make(map[string]provider.Variant, len(c.Variants))
	for _, v := range c.Variants {
		byID[v.ID] = v
	}

	// Вариант для каждого prompt'а должен быть сконфигурирован.
	variants := make([]provider.Variant, 0, len(prompts))
	promptByVariant := make(map[string]*domain.EnhancedPrompt, len(prompts))
	for i := range prompts {
		p := &prompts[i]
		v, ok := byID[p.Variant]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownVariant, p.Variant)
		}
		variants = append(variants, v)
		promptByVariant[p.Variant] = p
	}

	limit := c.Limit
	if limit <= 0 {
		limit = DefaultGenerateLimit
	}

	results := runAll(ctx, PhaseGenerate, variants, limit, c.Policy, c.Logger,
		func(ctx context.Context, v provider.Variant) ([]byte, error) {
			return c.Generator.Generate(ctx, promptByVariant[v.ID].Text, images, v)
		})

	if len(results) == 0 {
		return nil, ErrAllGenerateFailed
	}

	candidates := make([]*domain.Candidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, &domain.Candidate{
			Variant: r.Variant,
			Image:   r.Value,
			Prompt:  promptByVariant[r.Variant],
		})
	}
	return candidates, nil
}

// ValidateCaller — fanout фазы validation.
//
// По одному вызову vision-модели на каждого кандидата.
type ValidateCaller struct {
	Validator provider.Validator

	// Variant — вариант vision-модели, выполняющей проверку.
	Variant provider.Variant

	Limit  int64
	Policy *domain.RetryPolicy

	// InterCallDelay — пауза между вызовами в последовательном режиме.
	InterCallDelay time.Duration

	Logger *slog.Logger
}

// Run выполняет fanout validation-вызовов по списку кандидатов.
//
// sequential=true переключает фазу в строго последовательный режим
// с паузой между вызовами: используется внутри пошагового режима,
// чтобы не упереться в burst-rate провайдера.
//
// Инвариант на выходе: len(verdicts) <= len(candidates).
func (c *ValidateCaller) Run(ctx context.Context, originals []domain.InputImage, instruction string, candidates []*domain.Candidate, sequential bool) ([]domain.ValidationVerdict, error) {
	if len(candidates) == 0 {
		return nil, ErrAllValidateFailed
	}

	if sequential {
		return c.runSequential(ctx, originals, instruction, candidates)
	}

	limit := c.Limit
	if limit <= 0 {
		limit = DefaultValidateLimit
	}

	sem := semaphore.NewWeighted(limit)

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		verdicts []domain.ValidationVerdict
	)

	start := time.Now()

	for _, cand := range candidates {
		wg.Add(1)
		go func(cand *domain.Candidate) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)

			verdict, err := c.validateOne(ctx, originals, instruction, cand)
			if err != nil {
				telemetry.FanoutCalls.WithLabelValues(PhaseValidate, "dropped").Inc()
				c.Logger.Warn("validation call dropped",
					"variant", cand.Variant,
					"error", err,
				)
				return
			}

			telemetry.FanoutCalls.WithLabelValues(PhaseValidate, "ok").Inc()

			mu.Lock()
			verdicts = append(verdicts, *verdict)
			mu.Unlock()
		}(cand)
	}

	wg.Wait()
	telemetry.ObservePhase(PhaseValidate, start)

	if len(verdicts) == 0 {
		return nil, ErrAllValidateFailed
	}
	return verdicts, nil
}

// runSequential проверяет кандидатов строго по очереди.
func (c *ValidateCaller) runSequential(ctx context.Context, originals []domain.InputImage, instruction string, candidates []*domain.Candidate) ([]domain.ValidationVerdict, error) {
	delay := c.InterCallDelay
	if delay <= 0 {
		delay = DefaultInterCallDelay
	}

	var verdicts []domain.ValidationVerdict

	start := time.Now()

	for i, cand := range candidates {
		if i > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				telemetry.ObservePhase(PhaseValidate, start)
				return nil, ctx.Err()
			}
		}

		verdict, err := c.validateOne(ctx, originals, instruction, cand)
		if err != nil {
			telemetry.FanoutCalls.WithLabelValues(PhaseValidate, "dropped").Inc()
			c.Logger.Warn("validation call dropped",
				"variant", cand.Variant,
				"error", err,
			)
			continue
		}

		telemetry.FanoutCalls.WithLabelValues(PhaseValidate, "ok").Inc()
		verdicts = append(verdicts, *verdict)
	}

	telemetry.ObservePhase(PhaseValidate, start)

	if len(verdicts) == 0 {
		return nil, ErrAllValidateFailed
	}
	return verdicts, nil
}

// validateOne проверяет одного кандидата с retry и привязывает
// вердикт к кандидату.
func (c *ValidateCaller) validateOne(ctx context.Context, originals []domain.InputImage, instruction string, cand *domain.Candidate) (*domain.ValidationVerdict, error) {
	req := provider.ValidationRequest{
		Originals:      originals,
		CandidateImage: cand.Image,
		Instruction:    instruction,
	}

	verdict, err := callWithRetry(ctx, c.Variant, c.Policy, c.Logger,
		func(ctx context.Context, v provider.Variant) (*domain.ValidationVerdict, error) {
			return c.Validator.Validate(ctx, req, v)
		})
	if err != nil {
		return nil, err
	}

	verdict.Candidate = cand
	return verdict, nil
}
