// Package lockreg сериализует конкурентные запуски оркестрации
// по идентификатору задачи.
//
// Registry — инжектируемое хранилище TTL-блокировок:
//   - Acquire не блокируется: сразу возвращает успех или отказ
//   - Повторный Acquire на неистёкшую блокировку — это не ошибка,
//     а ожидаемый отказ "уже в работе" (дубликаты доставки нормальны)
//   - Release всегда вызывается из гарантированного cleanup-пути,
//     чтобы завершившийся запуск не держал блокировку до TTL
//
// Реализации:
//   - MemoryRegistry — карта под RWMutex, для одного процесса
//   - repo.LockRepo (пакет repo) — Postgres, для нескольких инстансов
//
// Sweeper — отдельный фоновый компонент, убирающий истёкшие
// блокировки по cron-расписанию, независимо от попыток Acquire.
package lockreg
