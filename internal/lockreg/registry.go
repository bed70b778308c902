package lockreg

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Retoucher/internal/domain"
)

// Registry — хранилище TTL-блокировок задач.
//
// Инвариант: для одной задачи в любой момент существует не более
// одной неистёкшей блокировки.
type Registry interface {
	// Acquire пытается захватить блокировку.
	// false означает "уже в работе" — это не ошибка.
	Acquire(ctx context.Context, taskID uuid.UUID) (bool, error)

	// Release освобождает блокировку задачи.
	Release(ctx context.Context, taskID uuid.UUID) error

	// Sweep удаляет все истёкшие блокировки.
	// Возвращает количество удалённых.
	Sweep(ctx context.Context) (int, error)
}

// MemoryRegistry — внутрипроцессная реализация Registry.
//
// Карта под RWMutex: записи разных задач не мешают друг другу,
// глобальной блокировки между несвязанными задачами нет.
type MemoryRegistry struct {
	ttl time.Duration

	mu    sync.RWMutex
	locks map[uuid.UUID]domain.TaskLock

	// now подменяется в тестах.
	now func() time.Time
}

// NewMemoryRegistry создаёт MemoryRegistry.
// ttl <= 0 заменяется на domain.DefaultLockTTL.
func NewMemoryRegistry(ttl time.Duration) *MemoryRegistry {
	if ttl <= 0 {
		ttl = domain.DefaultLockTTL
	}
	return &MemoryRegistry{
		ttl:   ttl,
		locks: make(map[uuid.UUID]domain.TaskLock),
		now:   time.Now,
	}
}

// Acquire захватывает блокировку, если её нет или она истекла.
func (r *MemoryRegistry) Acquire(_ context.Context, taskID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	if lock, exists := r.locks[taskID]; exists && !lock.Expired(now) {
		return false, nil
	}

	r.locks[taskID] = domain.TaskLock{
		TaskID:     taskID,
		AcquiredAt: now,
		TTL:        r.ttl,
	}
	return true, nil
}

// Release удаляет блокировку задачи.
// Отсутствие блокировки не считается ошибкой.
func (r *MemoryRegistry) Release(_ context.Context, taskID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.locks, taskID)
	return nil
}

// Sweep удаляет все истёкшие блокировки (брошенные упавшими запусками).
func (r *MemoryRegistry) Sweep(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0

	for taskID, lock := range r.locks {
		if lock.Expired(now) {
			delete(r.locks, taskID)
			removed++
		}
	}
	return removed, nil
}

// Len возвращает текущее количество блокировок (для тестов и статистики).
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.locks)
}
