// Package escalate строит сводку для передачи задачи на ручное ревью.
//
// Чистое преобразование данных: отправка сводки в таск-трекер
// и смена внешнего статуса — ответственность Task Sink, не этого пакета.
package escalate

import (
	"github.com/shaiso/Retoucher/internal/domain"
)

// Summarize строит эскалационную сводку по истории итераций:
// сколько итераций предпринято, исходная инструкция, объединение
// всех наблюдавшихся issues и набор испробованных моделей.
func Summarize(task *domain.EditTask, history []domain.IterationRecord, sequentialAttempted bool) *domain.EscalationSummary {
	return &domain.EscalationSummary{
		TaskID:              task.ID,
		Instruction:         task.Instruction,
		Iterations:          len(history),
		Issues:              domain.IssueUnion(history),
		Variants:            domain.VariantSet(history),
		SequentialAttempted: sequentialAttempted,
	}
}
