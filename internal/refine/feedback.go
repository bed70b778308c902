package refine

import (
	"fmt"
	"strings"

	"github.com/shaiso/Retoucher/internal/domain"
)

// MergeFeedback сливает issue-строки вердиктов итерации с исходной
// инструкцией в уточнённый текст для следующей итерации.
//
// Дубликаты issue убираются, порядок первого появления сохраняется.
// Если вердикты не содержат issues, инструкция возвращается как есть.
func MergeFeedback(instruction string, verdicts []domain.ValidationVerdict) string {
	seen := make(map[string]bool)
	var issues []string

	for i := range verdicts {
		for _, issue := range verdicts[i].Issues {
			issue = strings.TrimSpace(issue)
			if issue == "" || seen[issue] {
				continue
			}
			seen[issue] = true
			issues = append(issues, issue)
		}
	}

	if len(issues) == 0 {
		return instruction
	}

	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\nThe previous attempt was rejected for the following reasons:\n")
	for _, issue := range issues {
		fmt.Fprintf(&b, "- %s\n", issue)
	}
	b.WriteString("Redo the edit and address every issue above while still following the original instruction.")

	return b.String()
}
