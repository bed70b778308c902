package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Retoucher/internal/domain"
	"github.com/shaiso/Retoucher/internal/mq"
	"github.com/shaiso/Retoucher/internal/repo"
)

// Store — прямой доступ CLI к Postgres и RabbitMQ.
//
// RabbitMQ опционален: без него задача просто ляжет в БД
// и будет подхвачена polling-циклом Engine.
type Store struct {
	pool      *pgxpool.Pool
	tasks     *repo.TaskRepo
	publisher *mq.Publisher
	conn      *mq.Connection
}

// OpenStore подключается к БД (обязательно) и RabbitMQ (опционально).
func OpenStore(ctx context.Context, amqpURL string, logger *slog.Logger) (*Store, error) {
	pool, err := repo.NewPool(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{
		pool:  pool,
		tasks: repo.NewTaskRepo(pool),
	}

	if amqpURL == "" {
		amqpURL = mq.DefaultURL()
	}
	conn, err := mq.NewConnection(amqpURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, submit will rely on polling", "error", err)
	} else {
		s.conn = conn
		s.publisher = mq.NewPublisher(conn, logger)
	}

	return s, nil
}

// Close закрывает соединения.
func (s *Store) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// SubmitTask создаёт задачу и публикует событие edit.submitted.
func (s *Store) SubmitTask(ctx context.Context, instruction string, imagePaths []string, kind domain.TaskKind) (*domain.EditTask, error) {
	images := make([]domain.InputImage, 0, len(imagePaths))
	for _, path := range imagePaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read image %s: %w", path, err)
		}
		images = append(images, domain.InputImage{Name: path, Data: data})
	}

	task := &domain.EditTask{
		ID:          uuid.New(),
		Instruction: instruction,
		Images:      images,
		Kind:        kind,
		Status:      domain.EditStatusPending,
		CreatedAt:   time.Now(),
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishEditSubmitted(ctx, task.ID); err != nil {
			// Не фатально: задача в БД, Engine найдёт её через polling.
			return task, nil
		}
	}

	return task, nil
}

// GetTask возвращает задачу по ID.
func (s *Store) GetTask(ctx context.Context, id uuid.UUID) (*domain.EditTask, error) {
	return s.tasks.GetByID(ctx, id)
}

// ListTasks возвращает задачи в указанном статусе.
func (s *Store) ListTasks(ctx context.Context, status domain.EditStatus, limit int) ([]domain.EditTask, error) {
	return s.tasks.ListByStatus(ctx, status, limit)
}
