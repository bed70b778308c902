package lockreg

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Retoucher/internal/telemetry"
)

// DefaultSweepSpec — расписание sweep по умолчанию (каждые 5 минут).
const DefaultSweepSpec = "*/5 * * * *"

// cronParser — парсер cron-выражений (стандартные 5 полей).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Sweeper — фоновая уборка истёкших блокировок по cron-расписанию.
//
// Явная замена триггера "каждый N-й acquire": уборка идёт
// независимо от входящего трафика, что делает поведение
// детерминированным и тестируемым.
type Sweeper struct {
	registry Registry
	schedule cron.Schedule
	logger   *slog.Logger

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewSweeper создаёт Sweeper с cron-расписанием.
// spec == "" заменяется на DefaultSweepSpec.
func NewSweeper(registry Registry, spec string, logger *slog.Logger) (*Sweeper, error) {
	if spec == "" {
		spec = DefaultSweepSpec
	}

	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", spec, err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		registry: registry,
		schedule: schedule,
		logger:   logger,
	}, nil
}

// Start запускает фоновый цикл уборки.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop останавливает Sweeper и дожидается завершения цикла.
func (s *Sweeper) Stop() {
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.wg.Wait()
}

// run — основной цикл: ждём следующего срабатывания расписания,
// выполняем sweep, повторяем.
func (s *Sweeper) run(ctx context.Context) {
	for {
		next := s.schedule.Next(time.Now())

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		removed, err := s.registry.Sweep(ctx)
		if err != nil {
			s.logger.Error("lock sweep failed", "error", err)
			continue
		}

		if removed > 0 {
			telemetry.LocksSwept.Add(float64(removed))
			s.logger.Info("swept expired task locks", "removed", removed)
		}
	}
}
