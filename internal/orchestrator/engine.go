package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Retoucher/internal/domain"
	"github.com/shaiso/Retoucher/internal/lockreg"
	"github.com/shaiso/Retoucher/internal/mq"
	"github.com/shaiso/Retoucher/internal/repo"
	"github.com/shaiso/Retoucher/internal/telemetry"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 50
)

// Engine — долгоживущий сервис оркестрации задач редактирования.
//
// Engine:
//   - Получает новые задачи из очереди RabbitMQ (event-driven)
//   - Периодически проверяет pending задачи в БД (polling fallback)
//   - Сериализует запуски через lockreg.Registry
//   - Прогоняет задачу через Pipeline до терминального состояния
//   - Персистит результат и публикует completed/escalated событие
type Engine struct {
	// Repositories
	taskRepo *repo.TaskRepo

	// Locks
	locks lockreg.Registry

	// Pipeline
	pipeline *Pipeline

	// MQ
	publisher *mq.Publisher
	conn      *mq.Connection
	consumer  *mq.Consumer

	// Configuration
	pollInterval time.Duration
	batchSize    int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Engine.
type Config struct {
	// Repositories
	TaskRepo *repo.TaskRepo

	// Locks — реестр блокировок задач.
	Locks lockreg.Registry

	// Pipeline — машина состояний оркестрации.
	Pipeline *Pipeline

	// MQ
	Publisher *mq.Publisher
	Conn      *mq.Connection

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество задач за один poll (default: 50)

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Engine.
func New(cfg Config) *Engine {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		taskRepo:     cfg.TaskRepo,
		locks:        cfg.Locks,
		pipeline:     cfg.Pipeline,
		publisher:    cfg.Publisher,
		conn:         cfg.Conn,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start запускает Engine.
//
// Запускает:
//   - Consumer для edits.submitted
//   - Polling горутину для fallback
func (e *Engine) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancelFunc = cancel

	e.logger.Info("starting engine",
		"poll_interval", e.pollInterval,
		"batch_size", e.batchSize,
	)

	if e.conn != nil {
		e.consumer = mq.NewConsumer(e.conn, e.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueEditsSubmitted),
			Handler:  e.handleEditSubmitted,
			Prefetch: 10,
		})

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				e.logger.Error("edit consumer error", "error", err)
			}
		}()
	}

	// Запускаем polling
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.pollLoop(ctx)
	}()

	e.logger.Info("engine started")
	return nil
}

// Stop останавливает Engine.
func (e *Engine) Stop() {
	e.stoppedMu.Lock()
	e.stopped = true
	e.stoppedMu.Unlock()

	e.logger.Info("stopping engine...")

	if e.cancelFunc != nil {
		e.cancelFunc()
	}

	if e.consumer != nil {
		e.consumer.Stop()
	}

	// Ждём завершения горутин
	e.wg.Wait()

	e.logger.Info("engine stopped")
}

// IsStopped проверяет, остановлен ли Engine.
func (e *Engine) IsStopped() bool {
	e.stoppedMu.RLock()
	defer e.stoppedMu.RUnlock()
	return e.stopped
}

// pollLoop — цикл polling для fallback.
func (e *Engine) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем задачи,
	// созданные пока сервис был выключен)
	e.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (e *Engine) poll(ctx context.Context) {
	tasks, err := e.taskRepo.ListPending(ctx, e.batchSize)
	if err != nil {
		e.logger.Error("failed to list pending tasks", "error", err)
		return
	}

	if len(tasks) == 0 {
		return
	}

	e.logger.Debug("poll found pending tasks", "count", len(tasks))

	for i := range tasks {
		if err := e.ProcessTask(ctx, tasks[i].ID); err != nil {
			if errors.Is(err, ErrTaskLocked) || errors.Is(err, ErrTaskNotPending) {
				continue
			}
			e.logger.Error("failed to process task from poll",
				"task_id", tasks[i].ID,
				"error", err,
			)
		}
	}
}

// ProcessTask выполняет полную оркестрацию одной задачи.
//
// Захватывает блокировку, прогоняет Pipeline, персистит результат.
// Блокировка освобождается из гарантированного cleanup-пути при любом
// исходе, поэтому завершившийся запуск не держит её до TTL.
//
// Повторный вызов для заблокированной задачи возвращает ErrTaskLocked —
// определённый исход "уже в работе", а не ошибка обработки.
func (e *Engine) ProcessTask(ctx context.Context, taskID uuid.UUID) error {
	acquired, err := e.locks.Acquire(ctx, taskID)
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		telemetry.DuplicateRejected.Inc()
		e.logger.Debug("task already locked, skipping", "task_id", taskID)
		return ErrTaskLocked
	}
	// context.WithoutCancel: блокировку нужно снять и при отмене запуска.
	defer func() {
		if err := e.locks.Release(context.WithoutCancel(ctx), taskID); err != nil {
			e.logger.Warn("failed to release task lock", "task_id", taskID, "error", err)
		}
	}()

	task, err := e.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		return fmt.Errorf("get task: %w", err)
	}

	if task.Status != domain.EditStatusPending {
		return ErrTaskNotPending
	}

	task.MarkRunning()
	if err := e.taskRepo.Update(ctx, task); err != nil {
		return fmt.Errorf("update task to running: %w", err)
	}

	telemetry.TasksStarted.Inc()
	e.logger.Info("task started",
		"task_id", task.ID,
		"kind", task.Kind,
	)

	result, err := e.pipeline.Run(ctx, task)
	if err != nil {
		// Ошибка запуска (отмена/конфигурация), не терминальный исход.
		// Возвращаем задачу в PENDING: её подхватит следующий poll.
		task.Status = domain.EditStatusPending
		task.StartedAt = nil
		if uerr := e.taskRepo.Update(context.WithoutCancel(ctx), task); uerr != nil {
			e.logger.Error("failed to reset task to pending", "task_id", task.ID, "error", uerr)
		}
		return fmt.Errorf("run pipeline: %w", err)
	}

	return e.finalize(ctx, task, result)
}

// finalize персистит терминальный результат и публикует событие.
func (e *Engine) finalize(ctx context.Context, task *domain.EditTask, result *domain.Result) error {
	switch result.Outcome {
	case domain.OutcomeSuccess:
		task.MarkSucceeded(result.Candidate.Image, result.Variant, result.Iterations)
		if err := e.taskRepo.Update(ctx, task); err != nil {
			return fmt.Errorf("update task to succeeded: %w", err)
		}

		telemetry.TasksSucceeded.Inc()
		e.logger.Info("task succeeded",
			"task_id", task.ID,
			"variant", result.Variant,
			"iterations", result.Iterations,
		)

		e.publishCompleted(ctx, task, result)

	case domain.OutcomeEscalated:
		task.MarkEscalated(result.Summary.Text(), result.Iterations)
		if err := e.taskRepo.Update(ctx, task); err != nil {
			return fmt.Errorf("update task to escalated: %w", err)
		}

		e.logger.Warn("task escalated",
			"task_id", task.ID,
			"iterations", result.Iterations,
		)

		e.publishEscalated(ctx, task, result)
	}

	return nil
}

// publishCompleted публикует событие edit.completed.
func (e *Engine) publishCompleted(ctx context.Context, task *domain.EditTask, result *domain.Result) {
	if e.publisher == nil {
		return
	}

	payload := mq.EditCompletedPayload{
		TaskID:     task.ID,
		Status:     string(task.Status),
		Variant:    result.Variant,
		Iterations: result.Iterations,
	}

	if err := e.publisher.PublishEditCompleted(ctx, payload); err != nil {
		// Не возвращаем ошибку — задача обновлена в БД,
		// Task Sink подхватит её через статус.
		e.logger.Warn("failed to publish edit.completed",
			"task_id", task.ID,
			"error", err,
		)
	}
}

// publishEscalated публикует событие edit.escalated для Task Sink.
func (e *Engine) publishEscalated(ctx context.Context, task *domain.EditTask, result *domain.Result) {
	if e.publisher == nil {
		return
	}

	payload := mq.EditEscalatedPayload{
		TaskID:     task.ID,
		Iterations: result.Iterations,
		Summary:    result.Summary.Text(),
		Issues:     result.Summary.Issues,
		Variants:   result.Summary.Variants,
	}

	if err := e.publisher.PublishEditEscalated(ctx, payload); err != nil {
		e.logger.Warn("failed to publish edit.escalated",
			"task_id", task.ID,
			"error", err,
		)
	}
}
