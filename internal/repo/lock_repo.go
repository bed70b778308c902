package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Retoucher/internal/domain"
)

// LockRepo — Postgres-реализация lockreg.Registry.
//
// Для нескольких инстансов оркестратора: атомарность захвата
// обеспечивается INSERT ... ON CONFLICT с условным UPDATE —
// истёкшая блокировка перезахватывается, живая остаётся за владельцем.
type LockRepo struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewLockRepo создаёт LockRepo.
// ttl <= 0 заменяется на domain.DefaultLockTTL.
func NewLockRepo(pool *pgxpool.Pool, ttl time.Duration) *LockRepo {
	if ttl <= 0 {
		ttl = domain.DefaultLockTTL
	}
	return &LockRepo{pool: pool, ttl: ttl}
}

// Acquire пытается захватить блокировку задачи.
// false означает, что неистёкшая блокировка уже существует.
func (r *LockRepo) Acquire(ctx context.Context, taskID uuid.UUID) (bool, error) {
	query := `
		INSERT INTO task_locks (task_id, acquired_at, ttl_seconds)
		VALUES ($1, now(), $2)
		ON CONFLICT (task_id) DO UPDATE
		SET acquired_at = now(), ttl_seconds = EXCLUDED.ttl_seconds
		WHERE task_locks.acquired_at + make_interval(secs => task_locks.ttl_seconds) < now()
	`
	tag, err := r.pool.Exec(ctx, query, taskID, int(r.ttl.Seconds()))
	if err != nil {
		return false, fmt.Errorf("acquire task lock: %w", err)
	}

	// 0 строк — конфликт с живой блокировкой.
	return tag.RowsAffected() > 0, nil
}

// Release освобождает блокировку задачи.
// Отсутствие блокировки не считается ошибкой.
func (r *LockRepo) Release(ctx context.Context, taskID uuid.UUID) error {
	query := `DELETE FROM task_locks WHERE task_id = $1`
	if _, err := r.pool.Exec(ctx, query, taskID); err != nil {
		return fmt.Errorf("release task lock: %w", err)
	}
	return nil
}

// Sweep удаляет все истёкшие блокировки (брошенные упавшими запусками).
func (r *LockRepo) Sweep(ctx context.Context) (int, error) {
	query := `
		DELETE FROM task_locks
		WHERE acquired_at + make_interval(secs => ttl_seconds) < now()
	`
	tag, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("sweep task locks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
