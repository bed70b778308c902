// Package provider определяет интерфейсы внешних модельных возможностей.
//
// Три возможности:
//   - Enhancer  — переработка инструкции текстовой моделью
//   - Generator — генерация изображения по prompt'у
//   - Validator — оценка кандидата vision-моделью
//
// Конкретный транспорт/аутентификация/кодирование — забота реализаций;
// оркестратор видит только интерфейсы и результаты.
//
// HTTP-реализации (http.go) ходят в сконфигурированные endpoints
// вариантов моделей и несут собственные таймауты: генерация может
// занимать десятки секунд, это непрозрачно для оркестратора.
package provider
