// Package selector выбирает победившего кандидата из проверенного батча.
package selector

import (
	"github.com/shaiso/Retoucher/internal/domain"
)

// DefaultPassThreshold — минимальная оценка для прохождения (шкала 0–10).
const DefaultPassThreshold = 8.0

// Selector выбирает лучшего кандидата среди прошедших валидацию.
//
// Tie-break детерминирован: при равных оценках побеждает кандидат
// варианта с меньшим рангом (позицией в сконфигурированном списке
// вариантов). Вердикт неизвестного варианта получает наибольший ранг.
type Selector struct {
	threshold float64
	rank      map[string]int
}

// New создаёт Selector с порогом и приоритетом вариантов.
//
// threshold <= 0 заменяется на DefaultPassThreshold.
// variantOrder — идентификаторы вариантов в порядке убывания приоритета.
func New(threshold float64, variantOrder []string) *Selector {
	if threshold <= 0 {
		threshold = DefaultPassThreshold
	}

	rank := make(map[string]int, len(variantOrder))
	for i, v := range variantOrder {
		if _, ok := rank[v]; !ok {
			rank[v] = i
		}
	}

	return &Selector{threshold: threshold, rank: rank}
}

// Threshold возвращает текущий порог прохождения.
func (s *Selector) Threshold() float64 {
	return s.threshold
}

// Select возвращает кандидата лучшего прошедшего вердикта или nil,
// если ни один вердикт не прошёл.
//
// Проходит вердикт с Pass == true И Score >= threshold.
// Побеждает наибольшая оценка; при равенстве — меньший ранг варианта.
func (s *Selector) Select(verdicts []domain.ValidationVerdict) *domain.Candidate {
	var best *domain.ValidationVerdict

	for i := range verdicts {
		v := &verdicts[i]
		if !v.Pass || v.Score < s.threshold || v.Candidate == nil {
			continue
		}

		if best == nil || v.Score > best.Score {
			best = v
			continue
		}

		if v.Score == best.Score && s.variantRank(v.Candidate.Variant) < s.variantRank(best.Candidate.Variant) {
			best = v
		}
	}

	if best == nil {
		return nil
	}
	return best.Candidate
}

// variantRank возвращает ранг варианта; неизвестный вариант — в конец.
func (s *Selector) variantRank(variant string) int {
	if r, ok := s.rank[variant]; ok {
		return r
	}
	return len(s.rank)
}
