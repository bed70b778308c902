package orchestrator

import (
	"context"
	"log/slog"

	"github.com/shaiso/Retoucher/internal/domain"
	"github.com/shaiso/Retoucher/internal/escalate"
	"github.com/shaiso/Retoucher/internal/fanout"
	"github.com/shaiso/Retoucher/internal/refine"
	"github.com/shaiso/Retoucher/internal/selector"
	"github.com/shaiso/Retoucher/internal/telemetry"
)

// State — состояние машины оркестрации.
type State string

const (
	StateEnhancing  State = "ENHANCING"
	StateGenerating State = "GENERATING"
	StateValidating State = "VALIDATING"
	StateDeciding   State = "DECIDING"
	StateRefining   State = "REFINING"
	StateSequential State = "SEQUENTIAL"
	StateSuccess    State = "SUCCESS"
	StateEscalated  State = "ESCALATED"
)

// DefaultMaxIterations — бюджет полных итераций по умолчанию.
const DefaultMaxIterations = 3

// PipelineConfig — конфигурация Pipeline.
type PipelineConfig struct {
	Enhance  *fanout.EnhanceCaller
	Generate *fanout.GenerateCaller
	Validate *fanout.ValidateCaller

	Selector *selector.Selector

	// Splitter — эвристика декомпозиции (nil — ConjunctionSplitter).
	Splitter refine.Splitter

	// MaxIterations — бюджет итераций (default: 3).
	MaxIterations int

	// MaxAttemptsPerStep — бюджет попыток шага в пошаговом режиме (default: 2).
	MaxAttemptsPerStep int

	// Logger
	Logger *slog.Logger
}

// Pipeline — машина состояний одного запуска оркестрации.
//
// Pipeline не хранит состояние между запусками и безопасен для
// конкурентного использования разными задачами: всё изменяемое
// состояние запуска живёт в локальных переменных Run.
type Pipeline struct {
	enhance  *fanout.EnhanceCaller
	generate *fanout.GenerateCaller
	validate *fanout.ValidateCaller

	selector *selector.Selector
	splitter refine.Splitter

	maxIterations      int
	maxAttemptsPerStep int

	logger *slog.Logger
}

// NewPipeline создаёт новый Pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	maxAttemptsPerStep := cfg.MaxAttemptsPerStep
	if maxAttemptsPerStep <= 0 {
		maxAttemptsPerStep = refine.DefaultMaxAttemptsPerStep
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		enhance:            cfg.Enhance,
		generate:           cfg.Generate,
		validate:           cfg.Validate,
		selector:           cfg.Selector,
		splitter:           cfg.Splitter,
		maxIterations:      maxIterations,
		maxAttemptsPerStep: maxAttemptsPerStep,
		logger:             logger,
	}
}

// Run выполняет оркестрацию одной задачи до терминального состояния.
//
// Наружу видны только два исхода: SUCCESS с победившим кандидатом
// или ESCALATED со сводкой. Ошибка возвращается только при отмене
// контекста или ошибке конфигурации — не при провале моделей.
func (p *Pipeline) Run(ctx context.Context, task *domain.EditTask) (*domain.Result, error) {
	logger := telemetry.WithTaskID(p.logger, task.ID.String())

	logger.Info("orchestration started",
		"kind", task.Kind,
		"images", len(task.Images),
		"max_iterations", p.maxIterations,
	)

	instruction := task.Instruction
	var history []domain.IterationRecord

	for iteration := 1; iteration <= p.maxIterations; iteration++ {
		telemetry.Iterations.Inc()

		rec, winner, err := p.runIteration(ctx, iterationInput{
			index:           iteration,
			instruction:     instruction,
			origInstruction: task.Instruction,
			// Изображения прикладываются к enhancement только на первой
			// итерации: дальше контекст уже установлен текстом.
			enhanceImages: firstIterationImages(task, iteration),
			baseImages:    task.Images,
		}, logger)

		history = append(history, rec)

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !fanout.IsAllFailed(err) {
				return nil, err
			}
			// Фаза "все упали": итерация провалена целиком.
			// На неполной итерации — продолжаем, на последней —
			// выходим к декомпозиции/эскалации.
			logger.Warn("iteration failed in phase",
				"iteration", iteration,
				"error", err,
			)
			continue
		}

		if winner != nil {
			p.transition(logger, StateDeciding, StateSuccess)
			logger.Info("orchestration succeeded",
				"variant", winner.Variant,
				"iterations", iteration,
			)
			return &domain.Result{
				Outcome:    domain.OutcomeSuccess,
				Candidate:  winner,
				Variant:    winner.Variant,
				Iterations: iteration,
			}, nil
		}

		if iteration < p.maxIterations {
			p.transition(logger, StateDeciding, StateRefining)
			instruction = refine.MergeFeedback(task.Instruction, rec.Verdicts)
		}
	}

	// Бюджет итераций исчерпан: пробуем декомпозицию.
	steps := refine.Decompose(task.Instruction, p.splitter)
	sequentialAttempted := false

	if len(steps) > 1 {
		p.transition(logger, StateDeciding, StateSequential)
		telemetry.SequentialRuns.Inc()
		sequentialAttempted = true

		seq := &refine.Sequential{
			Runner:             &stepRunner{pipeline: p, logger: logger},
			MaxAttemptsPerStep: p.maxAttemptsPerStep,
			Logger:             logger,
		}

		winner, err := seq.Execute(ctx, task, steps)
		if err == nil {
			p.transition(logger, StateSequential, StateSuccess)
			logger.Info("orchestration succeeded in sequential mode",
				"variant", winner.Variant,
				"steps", len(steps),
			)
			return &domain.Result{
				Outcome:    domain.OutcomeSuccess,
				Candidate:  winner,
				Variant:    winner.Variant,
				Iterations: len(history),
			}, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("sequential mode failed", "error", err)
	}

	p.transition(logger, StateDeciding, StateEscalated)
	telemetry.TasksEscalated.Inc()

	summary := escalate.Summarize(task, history, sequentialAttempted)
	logger.Warn("orchestration escalated",
		"iterations", summary.Iterations,
		"issues", len(summary.Issues),
	)

	return &domain.Result{
		Outcome:    domain.OutcomeEscalated,
		Iterations: len(history),
		Summary:    summary,
	}, nil
}

// iterationInput — вход одной итерации enhance→generate→validate.
type iterationInput struct {
	index int

	// instruction — текущая (возможно, уточнённая) инструкция для enhancement.
	instruction string

	// origInstruction — исходная инструкция для validation.
	origInstruction string

	// enhanceImages — изображения для enhancement (nil после первой итерации).
	enhanceImages []domain.InputImage

	// baseImages — входные изображения для generation и validation.
	baseImages []domain.InputImage

	// sequentialValidation — последовательный режим validation-вызовов.
	sequentialValidation bool
}

// runIteration выполняет одну итерацию. Запись итерации возвращается
// всегда, даже частично заполненная при фазовой ошибке.
func (p *Pipeline) runIteration(ctx context.Context, in iterationInput, logger *slog.Logger) (domain.IterationRecord, *domain.Candidate, error) {
	rec := domain.IterationRecord{
		Index:   in.index,
		Outcome: domain.IterationExhausted,
	}

	logger = telemetry.WithIteration(logger, in.index)

	p.transition(logger, StateDeciding, StateEnhancing)
	prompts, err := p.enhance.Run(ctx, in.instruction, in.enhanceImages)
	if err != nil {
		return rec, nil, err
	}
	rec.Prompts = prompts

	p.transition(logger, StateEnhancing, StateGenerating)
	candidates, err := p.generate.Run(ctx, prompts, in.baseImages)
	if err != nil {
		return rec, nil, err
	}
	rec.Candidates = candidates

	p.transition(logger, StateGenerating, StateValidating)
	verdicts, err := p.validate.Run(ctx, in.baseImages, in.origInstruction, candidates, in.sequentialValidation)
	if err != nil {
		return rec, nil, err
	}
	rec.Verdicts = verdicts

	p.transition(logger, StateValidating, StateDeciding)
	winner := p.selector.Select(verdicts)
	if winner != nil {
		rec.Outcome = domain.IterationSucceeded
	}

	return rec, winner, nil
}

// transition логирует переход машины состояний.
func (p *Pipeline) transition(logger *slog.Logger, from, to State) {
	logger.Debug("state transition", "from", from, "to", to)
}

// firstIterationImages возвращает изображения задачи на первой итерации
// и nil на последующих.
func firstIterationImages(task *domain.EditTask, iteration int) []domain.InputImage {
	if iteration == 1 {
		return task.Images
	}
	return nil
}

// stepRunner адаптирует Pipeline под refine.StepRunner:
// один шаг пошагового режима — это полный mini-pipeline с первой
// итерацией над входными изображениями шага.
type stepRunner struct {
	pipeline *Pipeline
	logger   *slog.Logger
}

// RunStep выполняет один атомарный шаг.
// Возвращает (nil, nil), если ни один кандидат не прошёл порог.
func (r *stepRunner) RunStep(ctx context.Context, instruction string, images []domain.InputImage) (*domain.Candidate, error) {
	_, winner, err := r.pipeline.runIteration(ctx, iterationInput{
		index:                1,
		instruction:          instruction,
		origInstruction:      instruction,
		enhanceImages:        images,
		baseImages:           images,
		sequentialValidation: true,
	}, r.logger)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if fanout.IsAllFailed(err) {
			// Провал фазы — проваленная попытка шага, не ошибка запуска.
			return nil, nil
		}
		return nil, err
	}
	return winner, nil
}
