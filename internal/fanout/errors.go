package fanout

import "errors"

// Ошибки fanout-вызовов.
var (
	// ErrAllEnhanceFailed — все вызовы фазы enhancement провалились.
	ErrAllEnhanceFailed = errors.New("all enhancement calls failed")

	// ErrAllGenerateFailed — все вызовы фазы generation провалились.
	ErrAllGenerateFailed = errors.New("all generation calls failed")

	// ErrAllValidateFailed — все вызовы фазы validation провалились.
	ErrAllValidateFailed = errors.New("all validation calls failed")

	// ErrNoVariants — фаза сконфигурирована без вариантов моделей.
	ErrNoVariants = errors.New("no model variants configured")

	// ErrUnknownVariant — prompt ссылается на несконфигурированный вариант.
	ErrUnknownVariant = errors.New("unknown model variant")
)

// IsAllFailed возвращает true для любой фазовой ошибки "все упали".
func IsAllFailed(err error) bool {
	return errors.Is(err, ErrAllEnhanceFailed) ||
		errors.Is(err, ErrAllGenerateFailed) ||
		errors.Is(err, ErrAllValidateFailed)
}
