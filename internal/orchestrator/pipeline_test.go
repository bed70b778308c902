package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Retoucher/internal/domain"
	"github.com/shaiso/Retoucher/internal/fanout"
	"github.com/shaiso/Retoucher/internal/provider"
	"github.com/shaiso/Retoucher/internal/selector"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastPolicy() *domain.RetryPolicy {
	return &domain.RetryPolicy{MaxAttempts: 1, Backoff: domain.BackoffFixed, InitialDelayMs: 1, MaxDelayMs: 1}
}

// enhanceFunc / generateFunc / validateFunc — функциональные фейки провайдеров.

type enhanceFunc func(ctx context.Context, instruction string, images []domain.InputImage, v provider.Variant) (*domain.EnhancedPrompt, error)

func (f enhanceFunc) Enhance(ctx context.Context, instruction string, images []domain.InputImage, v provider.Variant) (*domain.EnhancedPrompt, error) {
	return f(ctx, instruction, images, v)
}

type generateFunc func(ctx context.Context, promptText string, images []domain.InputImage, v provider.Variant) ([]byte, error)

func (f generateFunc) Generate(ctx context.Context, promptText string, images []domain.InputImage, v provider.Variant) ([]byte, error) {
	return f(ctx, promptText, images, v)
}

type validateFunc func(ctx context.Context, req provider.ValidationRequest, v provider.Variant) (*domain.ValidationVerdict, error)

func (f validateFunc) Validate(ctx context.Context, req provider.ValidationRequest, v provider.Variant) (*domain.ValidationVerdict, error) {
	return f(ctx, req, v)
}

// echoEnhancer возвращает инструкцию как prompt.
func echoEnhancer() enhanceFunc {
	return func(_ context.Context, instruction string, _ []domain.InputImage, v provider.Variant) (*domain.EnhancedPrompt, error) {
		return &domain.EnhancedPrompt{Variant: v.ID, Text: instruction, CreatedAt: time.Now()}, nil
	}
}

// echoGenerator возвращает prompt как изображение.
func echoGenerator() generateFunc {
	return func(_ context.Context, promptText string, _ []domain.InputImage, _ provider.Variant) ([]byte, error) {
		return []byte(promptText), nil
	}
}

func newTestPipeline(enh provider.Enhancer, gen provider.Generator, val provider.Validator, variantIDs []string, maxIterations int) *Pipeline {
	variants := make([]provider.Variant, 0, len(variantIDs))
	for _, id := range variantIDs {
		variants = append(variants, provider.Variant{ID: id, Endpoint: "http://test/" + id})
	}

	logger := testLogger()

	return NewPipeline(PipelineConfig{
		Enhance: &fanout.EnhanceCaller{
			Enhancer: enh,
			Variants: variants,
			Policy:   fastPolicy(),
			Logger:   logger,
		},
		Generate: &fanout.GenerateCaller{
			Generator: gen,
			Variants:  variants,
			Policy:    fastPolicy(),
			Logger:    logger,
		},
		Validate: &fanout.ValidateCaller{
			Validator:      val,
			Variant:        provider.Variant{ID: "judge", Endpoint: "http://test/judge"},
			Policy:         fastPolicy(),
			InterCallDelay: time.Millisecond,
			Logger:         logger,
		},
		Selector:      selector.New(8.0, variantIDs),
		MaxIterations: maxIterations,
		Logger:        logger,
	})
}

func TestPipeline_SuccessFirstIteration(t *testing.T) {
	// Два варианта: оба генерируют, кандидат варианта "b" лучше
	validator := validateFunc(func(_ context.Context, req provider.ValidationRequest, _ provider.Variant) (*domain.ValidationVerdict, error) {
		score := 8.0
		if strings.Contains(string(req.CandidateImage), "b:") {
			score = 9.0
		}
		return &domain.ValidationVerdict{Score: score, Pass: true}, nil
	})

	generator := generateFunc(func(_ context.Context, promptText string, _ []domain.InputImage, v provider.Variant) ([]byte, error) {
		return []byte(v.ID + ": " + promptText), nil
	})

	p := newTestPipeline(echoEnhancer(), generator, validator, []string{"a", "b"}, 3)

	task := &domain.EditTask{
		ID:          uuid.New(),
		Instruction: "remove the watermark",
		Images:      []domain.InputImage{{Name: "in.png", Data: []byte("input")}},
	}

	result, err := p.Run(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != domain.OutcomeSuccess {
		t.Fatalf("expected SUCCESS, got %s", result.Outcome)
	}
	if result.Variant != "b" {
		t.Errorf("expected winner b, got %s", result.Variant)
	}
	if result.Iterations != 1 {
		t.Errorf("expected 1 iteration, got %d", result.Iterations)
	}
	if result.Candidate == nil || len(result.Candidate.Image) == 0 {
		t.Error("result should carry the winning image")
	}
}

func TestPipeline_RefinementCarriesFeedback(t *testing.T) {
	var mu sync.Mutex
	var enhanceInstructions []string
	validateCalls := 0

	enhancer := enhanceFunc(func(_ context.Context, instruction string, _ []domain.InputImage, v provider.Variant) (*domain.EnhancedPrompt, error) {
		mu.Lock()
		enhanceInstructions = append(enhanceInstructions, instruction)
		mu.Unlock()
		return &domain.EnhancedPrompt{Variant: v.ID, Text: instruction, CreatedAt: time.Now()}, nil
	})

	// Первая итерация проваливается с конкретной проблемой,
	// вторая проходит
	validator := validateFunc(func(_ context.Context, _ provider.ValidationRequest, _ provider.Variant) (*domain.ValidationVerdict, error) {
		mu.Lock()
		validateCalls++
		call := validateCalls
		mu.Unlock()

		if call == 1 {
			return &domain.ValidationVerdict{
				Score:  5,
				Pass:   false,
				Issues: []string{"the logo is distorted"},
			}, nil
		}
		return &domain.ValidationVerdict{Score: 9, Pass: true}, nil
	})

	p := newTestPipeline(enhancer, echoGenerator(), validator, []string{"a"}, 3)

	task := &domain.EditTask{ID: uuid.New(), Instruction: "add the company logo"}

	result, err := p.Run(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != domain.OutcomeSuccess {
		t.Fatalf("expected SUCCESS, got %s", result.Outcome)
	}
	if result.Iterations != 2 {
		t.Errorf("expected 2 iterations, got %d", result.Iterations)
	}

	// Вторая итерация получает уточнённую инструкцию с обратной связью
	if len(enhanceInstructions) != 2 {
		t.Fatalf("expected 2 enhance calls, got %d", len(enhanceInstructions))
	}
	if enhanceInstructions[0] != "add the company logo" {
		t.Errorf("first iteration should use the original instruction, got %q", enhanceInstructions[0])
	}
	if !strings.Contains(enhanceInstructions[1], "the logo is distorted") {
		t.Errorf("second iteration should carry the feedback, got %q", enhanceInstructions[1])
	}
	if !strings.Contains(enhanceInstructions[1], "add the company logo") {
		t.Error("refined instruction should still contain the original")
	}
}

func TestPipeline_BudgetExhaustedEscalates(t *testing.T) {
	// Валидация никогда не проходит; инструкция атомарна,
	// пошаговый режим невозможен
	validator := validateFunc(func(_ context.Context, _ provider.ValidationRequest, _ provider.Variant) (*domain.ValidationVerdict, error) {
		return &domain.ValidationVerdict{
			Score:  4,
			Pass:   false,
			Issues: []string{"background barely changed"},
		}, nil
	})

	p := newTestPipeline(echoEnhancer(), echoGenerator(), validator, []string{"a", "b"}, 2)

	task := &domain.EditTask{ID: uuid.New(), Instruction: "recolor the background"}

	result, err := p.Run(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != domain.OutcomeEscalated {
		t.Fatalf("expected ESCALATED, got %s", result.Outcome)
	}
	if result.Iterations != 2 {
		t.Errorf("expected 2 iterations, got %d", result.Iterations)
	}

	summary := result.Summary
	if summary == nil {
		t.Fatal("escalated result should carry a summary")
	}
	if summary.SequentialAttempted {
		t.Error("atomic instruction should not trigger sequential mode")
	}
	if len(summary.Issues) != 1 || summary.Issues[0] != "background barely changed" {
		t.Errorf("unexpected issues: %v", summary.Issues)
	}
	if len(summary.Variants) != 2 {
		t.Errorf("summary should list both attempted variants, got %v", summary.Variants)
	}
	if summary.Instruction != "recolor the background" {
		t.Error("summary should carry the original instruction")
	}
}

func TestPipeline_SequentialDecompositionSucceeds(t *testing.T) {
	// Обычные итерации проваливаются, но атомарные шаги
	// (помеченные защитной оговоркой) проходят
	validator := validateFunc(func(_ context.Context, req provider.ValidationRequest, _ provider.Variant) (*domain.ValidationVerdict, error) {
		if strings.Contains(req.Instruction, "exactly unchanged") {
			return &domain.ValidationVerdict{Score: 9, Pass: true}, nil
		}
		return &domain.ValidationVerdict{Score: 5, Pass: false, Issues: []string{"composite edit failed"}}, nil
	})

	p := newTestPipeline(echoEnhancer(), echoGenerator(), validator, []string{"a"}, 1)

	task := &domain.EditTask{
		ID:          uuid.New(),
		Instruction: "make the background blue and add a logo at the top",
		Images:      []domain.InputImage{{Name: "in.png", Data: []byte("input")}},
	}

	result, err := p.Run(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != domain.OutcomeSuccess {
		t.Fatalf("expected SUCCESS via sequential mode, got %s", result.Outcome)
	}
	if result.Candidate == nil {
		t.Fatal("result should carry the final candidate")
	}
	// Финальный кандидат — результат последнего шага
	if !strings.Contains(string(result.Candidate.Image), "add a logo at the top") {
		t.Errorf("final image should come from the last step, got %q", result.Candidate.Image)
	}
}

func TestPipeline_SequentialFailureEscalates(t *testing.T) {
	// Составная инструкция, но не проходит ни обычный,
	// ни пошаговый режим
	validator := validateFunc(func(_ context.Context, _ provider.ValidationRequest, _ provider.Variant) (*domain.ValidationVerdict, error) {
		return &domain.ValidationVerdict{Score: 3, Pass: false, Issues: []string{"nothing changed"}}, nil
	})

	p := newTestPipeline(echoEnhancer(), echoGenerator(), validator, []string{"a"}, 1)

	task := &domain.EditTask{
		ID:          uuid.New(),
		Instruction: "crop to square and sharpen the edges",
	}

	result, err := p.Run(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != domain.OutcomeEscalated {
		t.Fatalf("expected ESCALATED, got %s", result.Outcome)
	}
	if result.Summary == nil || !result.Summary.SequentialAttempted {
		t.Error("summary should record the sequential attempt")
	}
}

func TestPipeline_AllPhaseFailuresEscalate(t *testing.T) {
	// Все enhancement-вызовы падают на каждой итерации
	enhancer := enhanceFunc(func(_ context.Context, _ string, _ []domain.InputImage, _ provider.Variant) (*domain.EnhancedPrompt, error) {
		return nil, errors.New("model down")
	})

	p := newTestPipeline(enhancer, echoGenerator(), nil, []string{"a"}, 2)

	task := &domain.EditTask{ID: uuid.New(), Instruction: "brighten the photo"}

	result, err := p.Run(context.Background(), task)
	if err != nil {
		t.Fatalf("expected graceful escalation, got error: %v", err)
	}
	if result.Outcome != domain.OutcomeEscalated {
		t.Fatalf("expected ESCALATED, got %s", result.Outcome)
	}
	if result.Iterations != 2 {
		t.Errorf("expected 2 attempted iterations, got %d", result.Iterations)
	}
}

func TestPipeline_ValidationAllFailedListsVariants(t *testing.T) {
	// Все validation-вызовы падают на каждой итерации;
	// инструкция атомарна — итог только эскалация
	validator := validateFunc(func(_ context.Context, _ provider.ValidationRequest, _ provider.Variant) (*domain.ValidationVerdict, error) {
		return nil, errors.New("validator down")
	})

	p := newTestPipeline(echoEnhancer(), echoGenerator(), validator, []string{"a", "b"}, 2)

	task := &domain.EditTask{ID: uuid.New(), Instruction: "remove the shadow"}

	result, err := p.Run(context.Background(), task)
	if err != nil {
		t.Fatalf("expected graceful escalation, got error: %v", err)
	}
	if result.Outcome != domain.OutcomeEscalated {
		t.Fatalf("expected ESCALATED, got %s", result.Outcome)
	}

	// Сводка перечисляет все испробованные модели:
	// prompts и кандидаты успели записаться до провала валидации
	if result.Summary == nil || len(result.Summary.Variants) != 2 {
		t.Errorf("summary should list all attempted variants, got %+v", result.Summary)
	}
}

func TestPipeline_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	enhancer := enhanceFunc(func(ctx context.Context, _ string, _ []domain.InputImage, _ provider.Variant) (*domain.EnhancedPrompt, error) {
		cancel()
		return nil, ctx.Err()
	})

	p := newTestPipeline(enhancer, echoGenerator(), nil, []string{"a"}, 3)

	task := &domain.EditTask{ID: uuid.New(), Instruction: "x"}

	_, err := p.Run(ctx, task)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
