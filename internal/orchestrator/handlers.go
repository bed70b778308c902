package orchestrator

import (
	"context"
	"errors"

	"github.com/shaiso/Retoucher/internal/mq"
)

// handleEditSubmitted обрабатывает событие о новой задаче
// из очереди edits.submitted.
func (e *Engine) handleEditSubmitted(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.EditSubmittedPayload](&delivery.Message)
	if err != nil {
		e.logger.Error("failed to parse edit.submitted payload", "error", err)
		return err
	}

	e.logger.Debug("received edit.submitted event", "task_id", payload.TaskID)

	if err := e.ProcessTask(ctx, payload.TaskID); err != nil {
		// Ожидаемые ситуации — не возвращаем ошибку (ack).
		// Дубликаты доставки нормальны и отбрасываются молча.
		if errors.Is(err, ErrTaskLocked) || errors.Is(err, ErrTaskNotPending) || errors.Is(err, ErrTaskNotFound) {
			e.logger.Debug("task not processed", "task_id", payload.TaskID, "reason", err)
			return nil
		}
		e.logger.Error("failed to process task", "task_id", payload.TaskID, "error", err)
		return err
	}

	return nil
}
