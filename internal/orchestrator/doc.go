// Package orchestrator управляет выполнением задач редактирования.
//
// Два уровня:
//
// Pipeline — машина состояний одного запуска:
//
//	ENHANCING → GENERATING → VALIDATING → DECIDING
//	    ↑                                    ↓
//	    └──────────── REFINING ←─────────────┤
//	                                         ↓
//	                      SUCCESS | SEQUENTIAL | ESCALATED
//
// Итерации одной задачи строго последовательны; параллельность живёт
// внутри фазы (fanout по вариантам моделей) и между разными задачами.
// Бюджет итераций — грубый механизм остановки разбежавшихся задач.
//
// Engine — долгоживущий сервис вокруг Pipeline:
//   - Получает новые задачи из очереди RabbitMQ (event-driven)
//   - Периодически проверяет pending задачи в БД (polling fallback)
//   - Сериализует запуски через lockreg (дубликаты отбрасываются молча)
//   - Персистит терминальный результат и публикует событие
//     completed/escalated для Task Sink
package orchestrator
