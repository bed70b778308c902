package refine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/Retoucher/internal/domain"
)

// DefaultMaxAttemptsPerStep — бюджет попыток одного шага по умолчанию.
const DefaultMaxAttemptsPerStep = 2

// StepRunner выполняет один проход enhance→generate→validate
// для одного атомарного шага.
//
// Реализуется оркестратором; refine не знает деталей pipeline.
type StepRunner interface {
	RunStep(ctx context.Context, instruction string, images []domain.InputImage) (*domain.Candidate, error)
}

// Sequential выполняет декомпозированные шаги по порядку.
//
// Шаги связаны по данным: изображение победившего кандидата шага N
// становится входным изображением шага N+1. Шаг, исчерпавший свой
// бюджет попыток, немедленно обрывает цепочку — частичный успех
// не является поддерживаемым исходом.
type Sequential struct {
	Runner             StepRunner
	MaxAttemptsPerStep int
	Logger             *slog.Logger
}

// Execute прогоняет шаги по цепочке и возвращает финального кандидата.
func (s *Sequential) Execute(ctx context.Context, task *domain.EditTask, steps []string) (*domain.Candidate, error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}

	maxAttempts := s.MaxAttemptsPerStep
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttemptsPerStep
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Вход первого шага — исходные изображения задачи.
	images := task.Images
	var final *domain.Candidate

	for i, step := range steps {
		logger.Info("sequential step started",
			"task_id", task.ID,
			"step", i+1,
			"steps_total", len(steps),
		)

		cand, err := s.executeStep(ctx, step, images, maxAttempts)
		if err != nil {
			logger.Warn("sequential step failed, aborting chain",
				"task_id", task.ID,
				"step", i+1,
				"error", err,
			)
			return nil, fmt.Errorf("step %d/%d: %w", i+1, len(steps), err)
		}

		logger.Info("sequential step succeeded",
			"task_id", task.ID,
			"step", i+1,
			"variant", cand.Variant,
		)

		// Выход шага — вход следующего (байт-в-байт).
		final = cand
		images = []domain.InputImage{{
			Name: fmt.Sprintf("step_%d_result", i+1),
			Data: cand.Image,
		}}
	}

	return final, nil
}

// executeStep выполняет один шаг с его собственным бюджетом попыток.
func (s *Sequential) executeStep(ctx context.Context, instruction string, images []domain.InputImage, maxAttempts int) (*domain.Candidate, error) {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cand, err := s.Runner.RunStep(ctx, instruction, images)
		if err == nil && cand != nil {
			return cand, nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrStepExhausted, lastErr)
	}
	return nil, ErrStepExhausted
}
