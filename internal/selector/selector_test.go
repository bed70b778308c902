package selector

import (
	"testing"

	"github.com/shaiso/Retoucher/internal/domain"
)

func verdict(variant string, score float64, pass bool) domain.ValidationVerdict {
	return domain.ValidationVerdict{
		Candidate: &domain.Candidate{Variant: variant, Image: []byte(variant)},
		Score:     score,
		Pass:      pass,
	}
}

func TestSelect_HighestScoreWins(t *testing.T) {
	s := New(8.0, []string{"a", "b", "c"})

	verdicts := []domain.ValidationVerdict{
		verdict("a", 6, false),
		verdict("b", 9, true),
		verdict("c", 8, true),
	}

	winner := s.Select(verdicts)
	if winner == nil {
		t.Fatal("expected a winner")
	}
	if winner.Variant != "b" {
		t.Errorf("expected winner b (score 9), got %s", winner.Variant)
	}
}

func TestSelect_NonePass(t *testing.T) {
	s := New(8.0, []string{"a", "b", "c"})

	verdicts := []domain.ValidationVerdict{
		verdict("a", 7, false),
		verdict("b", 5, false),
		verdict("c", 6, false),
	}

	if winner := s.Select(verdicts); winner != nil {
		t.Errorf("expected no winner, got %s", winner.Variant)
	}
}

func TestSelect_PassBelowThreshold(t *testing.T) {
	s := New(8.0, []string{"a"})

	// Pass == true, но оценка ниже порога — не проходит
	verdicts := []domain.ValidationVerdict{
		verdict("a", 7.5, true),
	}

	if winner := s.Select(verdicts); winner != nil {
		t.Errorf("expected no winner below threshold, got %s", winner.Variant)
	}
}

func TestSelect_TieBreakByVariantOrder(t *testing.T) {
	s := New(8.0, []string{"first", "second"})

	// Одинаковые оценки: побеждает вариант с меньшим рангом,
	// независимо от порядка вердиктов
	verdicts := []domain.ValidationVerdict{
		verdict("second", 9, true),
		verdict("first", 9, true),
	}

	winner := s.Select(verdicts)
	if winner == nil {
		t.Fatal("expected a winner")
	}
	if winner.Variant != "first" {
		t.Errorf("tie-break should favor configured order, got %s", winner.Variant)
	}
}

func TestSelect_UnknownVariantRanksLast(t *testing.T) {
	s := New(8.0, []string{"known"})

	verdicts := []domain.ValidationVerdict{
		verdict("mystery", 9, true),
		verdict("known", 9, true),
	}

	winner := s.Select(verdicts)
	if winner == nil || winner.Variant != "known" {
		t.Errorf("known variant should beat unknown on tie, got %v", winner)
	}
}

func TestSelect_Empty(t *testing.T) {
	s := New(8.0, nil)

	if winner := s.Select(nil); winner != nil {
		t.Error("expected no winner for empty verdicts")
	}
}

func TestNew_DefaultThreshold(t *testing.T) {
	s := New(0, nil)
	if s.Threshold() != DefaultPassThreshold {
		t.Errorf("expected default threshold %v, got %v", DefaultPassThreshold, s.Threshold())
	}

	s = New(9.5, nil)
	if s.Threshold() != 9.5 {
		t.Errorf("expected threshold 9.5, got %v", s.Threshold())
	}
}
