package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Outcome — терминальный исход оркестрации.
//
// Наружу видны только два исхода: успех с победившим изображением
// или эскалация со структурированной сводкой. Частичных или
// неоднозначных терминальных состояний нет.
type Outcome string

const (
	// OutcomeSuccess — найден кандидат, прошедший валидацию.
	OutcomeSuccess Outcome = "SUCCESS"

	// OutcomeEscalated — все автоматические стратегии исчерпаны.
	OutcomeEscalated Outcome = "ESCALATED"
)

// Result — терминальный результат одного запуска оркестратора.
type Result struct {
	// Outcome — исход (SUCCESS или ESCALATED).
	Outcome Outcome `json:"outcome"`

	// Candidate — победивший кандидат (только при SUCCESS).
	Candidate *Candidate `json:"candidate,omitempty"`

	// Variant — идентификатор победившей модели (только при SUCCESS).
	Variant string `json:"variant,omitempty"`

	// Iterations — количество выполненных итераций.
	Iterations int `json:"iterations"`

	// Summary — эскалационная сводка (только при ESCALATED).
	Summary *EscalationSummary `json:"summary,omitempty"`
}

// EscalationSummary — структурированная сводка для ручного ревью.
//
// Чистое преобразование данных: доставка сводки в таск-трекер
// и смена внешнего статуса задачи — ответственность Task Sink.
type EscalationSummary struct {
	// TaskID — идентификатор задачи.
	TaskID uuid.UUID `json:"task_id"`

	// Instruction — исходная инструкция пользователя.
	Instruction string `json:"instruction"`

	// Iterations — количество предпринятых итераций.
	Iterations int `json:"iterations"`

	// Issues — объединение всех issue-строк по всем итерациям.
	Issues []string `json:"issues,omitempty"`

	// Variants — набор идентификаторов моделей, которые были испробованы.
	Variants []string `json:"variants,omitempty"`

	// SequentialAttempted — была ли предпринята попытка пошагового режима.
	SequentialAttempted bool `json:"sequential_attempted"`
}

// Text возвращает человекочитаемое представление сводки.
func (s *EscalationSummary) Text() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Automated editing failed after %d iteration(s).\n", s.Iterations)
	fmt.Fprintf(&b, "Original instruction: %s\n", s.Instruction)

	if len(s.Variants) > 0 {
		fmt.Fprintf(&b, "Models attempted: %s\n", strings.Join(s.Variants, ", "))
	}

	if s.SequentialAttempted {
		b.WriteString("Step-by-step decomposition was attempted and also failed.\n")
	}

	if len(s.Issues) > 0 {
		b.WriteString("Issues observed:\n")
		for _, issue := range s.Issues {
			fmt.Fprintf(&b, "  - %s\n", issue)
		}
	}

	return b.String()
}
