package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Retoucher/internal/domain"
)

// TaskRepo — репозиторий задач редактирования.
//
// Промежуточные артефакты итераций (prompts, кандидаты, вердикты)
// не персистятся: хранится только задача и её терминальный результат.
type TaskRepo struct {
	pool *pgxpool.Pool
}

// NewTaskRepo создаёт новый TaskRepo.
func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

// Create создаёт новую задачу.
func (r *TaskRepo) Create(ctx context.Context, task *domain.EditTask) error {
	imagesJSON, err := json.Marshal(task.Images)
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}

	query := `
		INSERT INTO edit_tasks (id, instruction, images, kind, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.pool.Exec(ctx, query,
		task.ID,
		task.Instruction,
		imagesJSON,
		task.Kind,
		task.Status,
		task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert edit task: %w", err)
	}
	return nil
}

// GetByID возвращает задачу по ID.
func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.EditTask, error) {
	query := `
		SELECT id, instruction, images, kind, status, result_image,
		       winning_variant, iterations, escalation,
		       started_at, finished_at, created_at
		FROM edit_tasks
		WHERE id = $1
	`
	return r.scanTask(r.pool.QueryRow(ctx, query, id))
}

// ListPending возвращает задачи в статусе PENDING (старые первыми).
func (r *TaskRepo) ListPending(ctx context.Context, limit int) ([]domain.EditTask, error) {
	query := `
		SELECT id, instruction, images, kind, status, result_image,
		       winning_variant, iterations, escalation,
		       started_at, finished_at, created_at
		FROM edit_tasks
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, domain.EditStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.EditTask
	for rows.Next() {
		task, err := r.scanTaskFromRows(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// ListByStatus возвращает задачи в указанном статусе (новые первыми).
func (r *TaskRepo) ListByStatus(ctx context.Context, status domain.EditStatus, limit int) ([]domain.EditTask, error) {
	query := `
		SELECT id, instruction, images, kind, status, result_image,
		       winning_variant, iterations, escalation,
		       started_at, finished_at, created_at
		FROM edit_tasks
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list tasks by status: %w", err)
	}
	defer rows.Close()

	var tasks []domain.EditTask
	for rows.Next() {
		task, err := r.scanTaskFromRows(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// Update сохраняет изменяемые поля задачи.
func (r *TaskRepo) Update(ctx context.Context, task *domain.EditTask) error {
	query := `
		UPDATE edit_tasks
		SET status = $2, result_image = $3, winning_variant = $4,
		    iterations = $5, escalation = $6, started_at = $7, finished_at = $8
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		task.ID,
		task.Status,
		task.ResultImage,
		task.WinningVariant,
		task.Iterations,
		task.Escalation,
		task.StartedAt,
		task.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update edit task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanTask сканирует одну строку в EditTask.
func (r *TaskRepo) scanTask(row pgx.Row) (*domain.EditTask, error) {
	var task domain.EditTask
	var imagesJSON []byte

	err := row.Scan(
		&task.ID,
		&task.Instruction,
		&imagesJSON,
		&task.Kind,
		&task.Status,
		&task.ResultImage,
		&task.WinningVariant,
		&task.Iterations,
		&task.Escalation,
		&task.StartedAt,
		&task.FinishedAt,
		&task.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan edit task: %w", err)
	}

	if len(imagesJSON) > 0 {
		if err := json.Unmarshal(imagesJSON, &task.Images); err != nil {
			return nil, fmt.Errorf("unmarshal images: %w", err)
		}
	}

	return &task, nil
}

// scanTaskFromRows сканирует EditTask из pgx.Rows.
func (r *TaskRepo) scanTaskFromRows(rows pgx.Rows) (*domain.EditTask, error) {
	return r.scanTask(rows)
}
