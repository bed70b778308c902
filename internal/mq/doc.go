// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - edit.submitted — новая задача редактирования ожидает оркестрации
//   - edit.completed — задача завершена победившим кандидатом
//   - edit.escalated — задача передана на ручное ревью
//
// Exchanges:
//   - retoucher.edits   — входящие задачи (Task Source → Engine)
//   - retoucher.results — терминальные события (Engine → Task Sink)
//   - retoucher.dlq     — dead letter queue
package mq
