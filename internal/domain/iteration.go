package domain

import (
	"sort"
	"time"
)

// EnhancedPrompt — инструкция, переработанная текстовой моделью.
//
// Создаётся по одному на каждый сконфигурированный вариант модели
// в рамках итерации и потребляется ровно одним вызовом генерации.
// За пределами итерации не сохраняется.
type EnhancedPrompt struct {
	// Variant — идентификатор варианта модели, породившего prompt.
	Variant string `json:"variant"`

	// Text — переработанный текст инструкции.
	Text string `json:"text"`

	// CreatedAt — время генерации.
	CreatedAt time.Time `json:"created_at"`
}

// Candidate — изображение, сгенерированное одним вариантом модели.
//
// Ровно один Candidate на каждый успешно отработавший вариант генерации.
type Candidate struct {
	// Variant — идентификатор варианта модели.
	Variant string `json:"variant"`

	// Image — сгенерированное изображение.
	Image []byte `json:"image"`

	// Prompt — prompt, из которого получен кандидат.
	Prompt *EnhancedPrompt `json:"prompt,omitempty"`
}

// ValidationVerdict — вердикт валидатора по одному кандидату.
//
// Неизменяем; единственный вход для выбора кандидата
// и для агрегации обратной связи.
type ValidationVerdict struct {
	// Candidate — проверенный кандидат.
	Candidate *Candidate `json:"candidate"`

	// Score — числовая оценка по шкале 0–10.
	Score float64 `json:"score"`

	// Pass — прошёл ли кандидат проверку.
	Pass bool `json:"pass"`

	// Issues — упорядоченный список найденных проблем.
	Issues []string `json:"issues,omitempty"`

	// Rationale — свободное текстовое обоснование вердикта.
	Rationale string `json:"rationale,omitempty"`
}

// IterationOutcome — исход одной итерации.
type IterationOutcome string

const (
	// IterationSucceeded — итерация дала победившего кандидата.
	IterationSucceeded IterationOutcome = "succeeded"

	// IterationExhausted — ни один кандидат не прошёл порог.
	IterationExhausted IterationOutcome = "exhausted"
)

// IterationRecord — запись об одной итерации enhance→generate→validate.
//
// Записи append-only и принадлежат одному запуску оркестратора;
// из них строится эскалационная сводка.
type IterationRecord struct {
	// Index — номер итерации (начиная с 1).
	Index int `json:"index"`

	// Prompts — prompts, полученные на фазе enhancement.
	Prompts []EnhancedPrompt `json:"prompts,omitempty"`

	// Candidates — кандидаты, полученные на фазе generation.
	// Инвариант: len(Candidates) <= len(Prompts).
	Candidates []*Candidate `json:"candidates,omitempty"`

	// Verdicts — вердикты фазы validation.
	// Инвариант: len(Verdicts) <= len(Candidates).
	Verdicts []ValidationVerdict `json:"verdicts,omitempty"`

	// Outcome — исход итерации.
	Outcome IterationOutcome `json:"outcome"`
}

// IssueUnion возвращает объединение issue-строк всех вердиктов
// без дубликатов, в порядке первого появления.
func IssueUnion(records []IterationRecord) []string {
	seen := make(map[string]bool)
	var issues []string

	for i := range records {
		for j := range records[i].Verdicts {
			for _, issue := range records[i].Verdicts[j].Issues {
				if issue == "" || seen[issue] {
					continue
				}
				seen[issue] = true
				issues = append(issues, issue)
			}
		}
	}
	return issues
}

// VariantSet возвращает отсортированный набор идентификаторов моделей,
// встречавшихся в записях (в prompts, кандидатах и вердиктах).
func VariantSet(records []IterationRecord) []string {
	seen := make(map[string]bool)

	for i := range records {
		rec := &records[i]
		for j := range rec.Prompts {
			seen[rec.Prompts[j].Variant] = true
		}
		for j := range rec.Candidates {
			seen[rec.Candidates[j].Variant] = true
		}
	}

	variants := make([]string, 0, len(seen))
	for v := range seen {
		if v != "" {
			variants = append(variants, v)
		}
	}
	sort.Strings(variants)
	return variants
}
