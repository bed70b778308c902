// Retoucher Orchestrator — управляет выполнением задач редактирования.
//
// Orchestrator:
//   - Получает новые задачи из RabbitMQ (и через polling БД)
//   - Прогоняет каждую задачу через цикл enhance→generate→validate
//   - При недостаточном качестве уточняет инструкцию и повторяет
//   - При исчерпании бюджета пробует пошаговую декомпозицию
//   - Эскалирует на ручное ревью, когда автоматика исчерпана
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Retoucher/internal/fanout"
	"github.com/shaiso/Retoucher/internal/lockreg"
	"github.com/shaiso/Retoucher/internal/mq"
	"github.com/shaiso/Retoucher/internal/orchestrator"
	"github.com/shaiso/Retoucher/internal/provider"
	"github.com/shaiso/Retoucher/internal/refine"
	"github.com/shaiso/Retoucher/internal/repo"
	"github.com/shaiso/Retoucher/internal/selector"
	"github.com/shaiso/Retoucher/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting retoucher-orchestrator")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	taskRepo := repo.NewTaskRepo(pool)

	// Варианты моделей редактирования (enhance + generate)
	editVariants, err := provider.ParseVariants(os.Getenv("RETOUCHER_EDIT_VARIANTS"))
	if err != nil {
		logger.Error("invalid RETOUCHER_EDIT_VARIANTS", "error", err)
		os.Exit(1)
	}

	// Вариант vision-модели валидации
	validatorVariants, err := provider.ParseVariants(os.Getenv("RETOUCHER_VALIDATOR_VARIANT"))
	if err != nil {
		logger.Error("invalid RETOUCHER_VALIDATOR_VARIANT", "error", err)
		os.Exit(1)
	}

	variantIDs := make([]string, 0, len(editVariants))
	for _, v := range editVariants {
		variantIDs = append(variantIDs, v.ID)
	}
	logger.Info("model variants configured",
		"edit", variantIDs,
		"validator", validatorVariants[0].ID,
	)

	// Реестр блокировок: Postgres по умолчанию, memory для single-instance
	var locks lockreg.Registry
	if os.Getenv("RETOUCHER_LOCK_BACKEND") == "memory" {
		locks = lockreg.NewMemoryRegistry(0)
	} else {
		locks = repo.NewLockRepo(pool, 0)
	}

	// Фоновая уборка истёкших блокировок
	sweeper, err := lockreg.NewSweeper(locks, os.Getenv("RETOUCHER_SWEEP_CRON"), logger)
	if err != nil {
		logger.Error("invalid RETOUCHER_SWEEP_CRON", "error", err)
		os.Exit(1)
	}
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// RabbitMQ
	var publisher *mq.Publisher
	var mqConn *mq.Connection
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err = mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		// Создаём топологию
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	policy := fanout.DefaultPolicy()

	pipeline := orchestrator.NewPipeline(orchestrator.PipelineConfig{
		Enhance: &fanout.EnhanceCaller{
			Enhancer: provider.NewHTTPEnhancer(),
			Variants: editVariants,
			Policy:   policy,
			Logger:   logger,
		},
		Generate: &fanout.GenerateCaller{
			Generator: provider.NewHTTPGenerator(),
			Variants:  editVariants,
			Policy:    policy,
			Logger:    logger,
		},
		Validate: &fanout.ValidateCaller{
			Validator: provider.NewHTTPValidator(),
			Variant:   validatorVariants[0],
			Policy:    policy,
			Logger:    logger,
		},
		Selector:      selector.New(envFloat("RETOUCHER_PASS_THRESHOLD", 0), variantIDs),
		Splitter:      refine.ConjunctionSplitter{},
		MaxIterations: envInt("RETOUCHER_MAX_ITERATIONS", 0),
		Logger:        logger,
	})

	// Создаём engine
	engine := orchestrator.New(orchestrator.Config{
		TaskRepo:  taskRepo,
		Locks:     locks,
		Pipeline:  pipeline,
		Publisher: publisher,
		Conn:      mqConn,
		Logger:    logger,
	})

	// Запускаем engine
	if err := engine.Start(ctx); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8083"
	if v := os.Getenv("ORCH_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем engine
	engine.Stop()
	logger.Info("retoucher-orchestrator stopped")
}

// envInt читает целое из переменной окружения, def при отсутствии.
func envInt(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// envFloat читает float из переменной окружения, def при отсутствии.
func envFloat(name string, def float64) float64 {
	if v := os.Getenv(name); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
