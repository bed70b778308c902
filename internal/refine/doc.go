// Package refine дорабатывает инструкцию между итерациями
// и реализует пошаговый (sequential) режим.
//
// Две независимые способности:
//
//   - Агрегация обратной связи: issue-строки всех вердиктов итерации
//     сливаются с исходной инструкцией в уточнённый текст
//     для следующей итерации (feedback.go)
//
//   - Декомпозиция: составная инструкция разбивается на упорядоченные
//     атомарные шаги, каждый из которых прогоняется через полный
//     mini-pipeline enhance→generate→validate с собственным бюджетом
//     попыток; выход шага — вход следующего (decompose.go, sequential.go)
//
// Эвристика разбиения завязана на союзы/разделители английского языка
// и вынесена за интерфейс Splitter, чтобы её можно было заменить.
package refine
