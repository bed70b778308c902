package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskKind — вид задачи редактирования.
//
// Определяется один раз при приёме задачи и не меняется
// на протяжении всей оркестрации.
type TaskKind string

const (
	// TaskKindSingleEdit — редактирование одного изображения.
	TaskKindSingleEdit TaskKind = "single_edit"

	// TaskKindComposite — композиция из нескольких исходных изображений.
	TaskKindComposite TaskKind = "composite"
)

// ParseTaskKind парсит строку в TaskKind.
func ParseTaskKind(s string) TaskKind {
	if s == string(TaskKindComposite) {
		return TaskKindComposite
	}
	return TaskKindSingleEdit
}

// InputImage — исходное изображение задачи.
//
// Хранится как бинарный payload, а не как ссылка/URL:
// оркестратору нужны сами байты для передачи моделям.
type InputImage struct {
	// Name — имя файла (для логов и эскалационной сводки).
	Name string `json:"name"`

	// Data — содержимое изображения.
	Data []byte `json:"data"`
}

// EditTask — задача на автоматическое редактирование изображения.
//
// EditTask создаётся при приёме запроса (Task Source) и выполняется
// оркестратором. После старта оркестрации задача неизменяема:
// один запуск оркестратора владеет ею эксклюзивно до терминального
// состояния (SUCCEEDED или ESCALATED).
type EditTask struct {
	// ID — уникальный идентификатор задачи.
	ID uuid.UUID `json:"id"`

	// Instruction — исходная инструкция пользователя на естественном языке.
	Instruction string `json:"instruction"`

	// Images — исходные изображения (ноль или больше).
	Images []InputImage `json:"images,omitempty"`

	// Kind — вид задачи (single_edit или composite).
	Kind TaskKind `json:"kind"`

	// Status — текущий статус задачи.
	Status EditStatus `json:"status"`

	// ResultImage — финальное изображение (заполняется при SUCCEEDED).
	ResultImage []byte `json:"result_image,omitempty"`

	// WinningVariant — идентификатор модели, чей кандидат победил.
	WinningVariant string `json:"winning_variant,omitempty"`

	// Iterations — количество выполненных итераций.
	Iterations int `json:"iterations,omitempty"`

	// Escalation — текст эскалационной сводки (заполняется при ESCALATED).
	Escalation string `json:"escalation,omitempty"`

	// StartedAt — время начала оркестрации.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время достижения терминального состояния.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время приёма задачи.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность оркестрации.
func (t *EditTask) Duration() time.Duration {
	if t.StartedAt == nil || t.FinishedAt == nil {
		return 0
	}
	return t.FinishedAt.Sub(*t.StartedAt)
}

// IsFinished возвращает true, если задача в терминальном состоянии.
func (t *EditTask) IsFinished() bool {
	return t.Status.IsTerminal()
}

// MarkRunning переводит задачу в статус RUNNING.
func (t *EditTask) MarkRunning() {
	now := time.Now()
	t.Status = EditStatusRunning
	t.StartedAt = &now
}

// MarkSucceeded переводит задачу в статус SUCCEEDED с результатом.
func (t *EditTask) MarkSucceeded(image []byte, variant string, iterations int) {
	now := time.Now()
	t.Status = EditStatusSucceeded
	t.ResultImage = image
	t.WinningVariant = variant
	t.Iterations = iterations
	t.FinishedAt = &now
}

// MarkEscalated переводит задачу в статус ESCALATED со сводкой для ревью.
func (t *EditTask) MarkEscalated(summary string, iterations int) {
	now := time.Now()
	t.Status = EditStatusEscalated
	t.Escalation = summary
	t.Iterations = iterations
	t.FinishedAt = &now
}
