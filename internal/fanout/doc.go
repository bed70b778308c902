// Package fanout выполняет параллельные независимые вызовы моделей
// в рамках одной фазы (enhancement, generation, validation).
//
// Общий паттерн для всех трёх фаз:
//   - По одному независимому вызову на сконфигурированный вариант модели
//   - Параллельность ограничена counting semaphore (лимит на фазу),
//     чтобы не упираться в rate limits провайдеров
//   - Каждый вызов ретраится с exponential backoff по RetryPolicy;
//     вызов, исчерпавший попытки, выбрасывается из результата,
//     а не роняет весь fanout
//   - Если упали ВСЕ вызовы фазы — возвращается фазовая ошибка
//     (ErrAllEnhanceFailed / ErrAllGenerateFailed / ErrAllValidateFailed),
//     сигнал оркестратору считать итерацию проваленной
//
// Порядок результатов не гарантируется: каждый результат несёт
// идентификатор своего варианта, позиция в срезе ничего не значит.
package fanout
