package refine

import "errors"

// Ошибки пошагового режима.
var (
	// ErrNoSteps — пошаговый запуск без шагов.
	ErrNoSteps = errors.New("sequential run has no steps")

	// ErrStepExhausted — шаг исчерпал все попытки.
	// Цепочка обрывается немедленно, частичный результат не возвращается.
	ErrStepExhausted = errors.New("sequential step exhausted its attempts")
)
