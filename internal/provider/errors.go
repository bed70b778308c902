package provider

import "errors"

// Ошибки провайдеров моделей.
var (
	// ErrInvalidVariants — конфигурация вариантов не прошла валидацию.
	ErrInvalidVariants = errors.New("invalid variant configuration")

	// ErrEmptyPrompt — модель вернула пустой текст prompt'а.
	ErrEmptyPrompt = errors.New("enhancer returned empty prompt")

	// ErrEmptyImage — модель вернула пустое изображение.
	ErrEmptyImage = errors.New("generator returned empty image")

	// ErrCallCancelled — вызов прерван по контексту.
	ErrCallCancelled = errors.New("model call cancelled")
)
