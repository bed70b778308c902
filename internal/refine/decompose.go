package refine

import "strings"

// PreserveClause добавляется к каждому производному шагу, чтобы
// пошаговые правки не откатывали результат предыдущих шагов.
const PreserveClause = "Keep everything else in the image exactly unchanged."

// Splitter разбивает составную инструкцию на атомарные предложения.
//
// Эвристика разбиения хрупкая и завязана на конкретный естественный
// язык, поэтому вынесена за интерфейс: реализацию можно заменить,
// не трогая оркестрацию.
type Splitter interface {
	Split(instruction string) []string
}

// ConjunctionSplitter — эвристика по союзам и разделителям списков
// английского языка.
//
// Это осознанно ограниченная эвристика, а не общий алгоритм:
// "black and white" она разрежет неправильно. Цена ошибки невысока —
// неудачное разбиение просто приведёт к эскалации.
type ConjunctionSplitter struct{}

// separators в порядке убывания специфичности. Более специфичные
// применяются раньше, чтобы ", and then" не разрезался дважды.
var separators = []string{
	"; ",
	", and then ",
	" and then ",
	", then ",
	" then ",
	", and ",
	" and ",
}

// Split разбивает инструкцию на предложения.
// Атомарная инструкция возвращается одним элементом.
func (ConjunctionSplitter) Split(instruction string) []string {
	parts := []string{strings.TrimSpace(instruction)}

	for _, sep := range separators {
		var next []string
		for _, part := range parts {
			for _, piece := range strings.Split(part, sep) {
				piece = strings.TrimSpace(piece)
				if piece != "" {
					next = append(next, piece)
				}
			}
		}
		parts = next
	}

	if len(parts) == 0 {
		return []string{strings.TrimSpace(instruction)}
	}
	return parts
}

// Decompose разбивает составную инструкцию на упорядоченные атомарные шаги.
//
// Результат из одного элемента означает "дальше не разбивается":
// входить в пошаговый режим с ним нельзя — это был бы no-op повтор
// той же проваленной инструкции.
//
// При разбиении на несколько шагов каждый шаг дополняется явным
// PreserveClause.
func Decompose(instruction string, splitter Splitter) []string {
	if splitter == nil {
		splitter = ConjunctionSplitter{}
	}

	parts := splitter.Split(instruction)
	if len(parts) <= 1 {
		return []string{instruction}
	}

	steps := make([]string, 0, len(parts))
	for _, part := range parts {
		if !strings.HasSuffix(part, ".") {
			part += "."
		}
		steps = append(steps, part+" "+PreserveClause)
	}
	return steps
}
