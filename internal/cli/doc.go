// Package cli реализует инструмент командной строки Retoucher.
//
// CLI — операторская утилита для постановки и инспекции задач
// редактирования. HTTP-поверхности у системы нет (приём задач идёт
// через webhook-коллаборатора), поэтому CLI подключается напрямую
// к Postgres и RabbitMQ.
//
// # Ключевые компоненты
//
// ## Store
//
// Обёртка над repo.TaskRepo и mq.Publisher: создание задачи,
// публикация edit.submitted, чтение статуса.
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: retoucher task list --json | jq .
//
// ## Commands
//
//   - task: submit, show, list
//
// Группа создаётся через фабричную функцию NewTaskCmd, принимающую
// storeFn и outputFn — замыкания для ленивой инициализации после
// парсинга PersistentFlags.
package cli
