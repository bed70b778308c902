package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrTaskNotFound — задача не найдена в БД.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskNotPending — задача не в статусе PENDING.
	ErrTaskNotPending = errors.New("task is not in PENDING status")

	// ErrTaskLocked — задача уже в работе у другого запуска.
	// Не ошибка обработки: дубликат отбрасывается молча.
	ErrTaskLocked = errors.New("task already in progress")

	// ErrEngineStopped — Engine остановлен.
	ErrEngineStopped = errors.New("engine stopped")
)
