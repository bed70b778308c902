package domain

// EditStatus — статус задачи редактирования.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ ESCALATED
//
// Других терминальных состояний нет: задача либо завершается
// победившим кандидатом, либо передаётся человеку на ревью.
type EditStatus string

const (
	// EditStatusPending — задача принята, но оркестрация ещё не началась.
	EditStatusPending EditStatus = "PENDING"

	// EditStatusRunning — задача в процессе оркестрации.
	EditStatusRunning EditStatus = "RUNNING"

	// EditStatusSucceeded — найден кандидат, прошедший валидацию.
	EditStatusSucceeded EditStatus = "SUCCEEDED"

	// EditStatusEscalated — автоматические стратегии исчерпаны,
	// задача передана на ручное ревью.
	EditStatusEscalated EditStatus = "ESCALATED"
)

// IsTerminal возвращает true, если статус финальный.
func (s EditStatus) IsTerminal() bool {
	switch s {
	case EditStatusSucceeded, EditStatusEscalated:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление EditStatus.
func (s EditStatus) String() string {
	return string(s)
}

// ParseEditStatus парсит строку в EditStatus.
func ParseEditStatus(s string) EditStatus {
	switch s {
	case "RUNNING":
		return EditStatusRunning
	case "SUCCEEDED":
		return EditStatusSucceeded
	case "ESCALATED":
		return EditStatusEscalated
	default:
		return EditStatusPending
	}
}
