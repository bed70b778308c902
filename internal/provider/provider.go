package provider

import (
	"context"

	"github.com/shaiso/Retoucher/internal/domain"
)

// Enhancer — текстовая модель, перерабатывающая инструкцию.
//
// Безопасна для вызова без изображений: на итерациях после первой
// изображения не передаются (контекст уже установлен текстом).
type Enhancer interface {
	Enhance(ctx context.Context, instruction string, images []domain.InputImage, variant Variant) (*domain.EnhancedPrompt, error)
}

// Generator — модель генерации изображений.
//
// Может работать десятки секунд: реализация сама отвечает
// за таймаут и polling, для оркестратора это непрозрачно.
type Generator interface {
	Generate(ctx context.Context, promptText string, images []domain.InputImage, variant Variant) ([]byte, error)
}

// ValidationRequest — вход для проверки одного кандидата.
type ValidationRequest struct {
	// Originals — исходные изображения задачи.
	Originals []domain.InputImage

	// CandidateImage — проверяемое изображение.
	CandidateImage []byte

	// Instruction — исходная инструкция пользователя.
	Instruction string
}

// Validator — vision-модель, оценивающая кандидата.
//
// Возвращает вердикт без заполненного поля Candidate:
// привязку вердикта к кандидату выполняет вызывающая сторона.
type Validator interface {
	Validate(ctx context.Context, req ValidationRequest, variant Variant) (*domain.ValidationVerdict, error)
}
