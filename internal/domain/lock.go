package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultLockTTL — время жизни блокировки по умолчанию.
//
// Ограничивает ущерб от упавшего запуска, который не освободил
// блокировку: по истечении TTL задачу можно взять заново.
const DefaultLockTTL = time.Hour

// TaskLock — TTL-ограниченный маркер эксклюзивности задачи.
//
// Инвариант: для одной задачи в любой момент существует
// не более одной неистёкшей блокировки.
type TaskLock struct {
	// TaskID — идентификатор заблокированной задачи.
	TaskID uuid.UUID `json:"task_id"`

	// AcquiredAt — время захвата.
	AcquiredAt time.Time `json:"acquired_at"`

	// TTL — время жизни блокировки.
	TTL time.Duration `json:"ttl"`
}

// ExpiresAt возвращает время истечения блокировки.
func (l *TaskLock) ExpiresAt() time.Time {
	return l.AcquiredAt.Add(l.TTL)
}

// Expired возвращает true, если блокировка истекла к моменту now.
// Истёкшая блокировка считается брошенной (например, после падения процесса).
func (l *TaskLock) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt())
}
