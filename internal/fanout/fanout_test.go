package fanout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Retoucher/internal/domain"
	"github.com/shaiso/Retoucher/internal/provider"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fastPolicy — retry без задержек, чтобы тесты не спали.
func fastPolicy(attempts int) *domain.RetryPolicy {
	return &domain.RetryPolicy{
		MaxAttempts:    attempts,
		Backoff:        domain.BackoffFixed,
		InitialDelayMs: 1,
		MaxDelayMs:     1,
	}
}

func testVariants(ids ...string) []provider.Variant {
	variants := make([]provider.Variant, 0, len(ids))
	for _, id := range ids {
		variants = append(variants, provider.Variant{ID: id, Endpoint: "http://test/" + id})
	}
	return variants
}

// fakeEnhancer проваливает варианты из fail и считает вызовы.
type fakeEnhancer struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls map[string]int
}

func (f *fakeEnhancer) Enhance(_ context.Context, instruction string, _ []domain.InputImage, v provider.Variant) (*domain.EnhancedPrompt, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[v.ID]++
	f.mu.Unlock()

	if f.fail[v.ID] {
		return nil, errors.New("model unavailable")
	}
	return &domain.EnhancedPrompt{
		Variant:   v.ID,
		Text:      "enhanced: " + instruction,
		CreatedAt: time.Now(),
	}, nil
}

type fakeGenerator struct {
	fail map[string]bool
}

func (f *fakeGenerator) Generate(_ context.Context, promptText string, _ []domain.InputImage, v provider.Variant) ([]byte, error) {
	if f.fail[v.ID] {
		return nil, errors.New("generation failed")
	}
	return []byte(v.ID + ": " + promptText), nil
}

type fakeValidator struct {
	mu     sync.Mutex
	scores map[string]float64
	fail   map[string]bool
	order  []string
}

func (f *fakeValidator) Validate(_ context.Context, req provider.ValidationRequest, _ provider.Variant) (*domain.ValidationVerdict, error) {
	candidate := string(req.CandidateImage)

	f.mu.Lock()
	f.order = append(f.order, candidate)
	f.mu.Unlock()

	if f.fail[candidate] {
		return nil, errors.New("validator unavailable")
	}

	score := f.scores[candidate]
	return &domain.ValidationVerdict{
		Score: score,
		Pass:  score >= 8,
	}, nil
}

// Backoff Tests

func TestBackoff_Exponential(t *testing.T) {
	policy := &domain.RetryPolicy{
		MaxAttempts:    5,
		Backoff:        domain.BackoffExponential,
		InitialDelayMs: 1000,
		MaxDelayMs:     15000,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 15 * time.Second}, // capped
		{10, 15 * time.Second},
	}

	for _, tt := range tests {
		if got := Backoff(tt.attempt, policy); got != tt.expected {
			t.Errorf("Backoff(%d) = %v, expected %v", tt.attempt, got, tt.expected)
		}
	}
}

func TestBackoff_Fixed(t *testing.T) {
	policy := &domain.RetryPolicy{
		Backoff:        domain.BackoffFixed,
		InitialDelayMs: 500,
		MaxDelayMs:     30000,
	}

	for _, attempt := range []int{1, 2, 7} {
		if got := Backoff(attempt, policy); got != 500*time.Millisecond {
			t.Errorf("Backoff(%d) = %v, expected 500ms", attempt, got)
		}
	}
}

func TestBackoff_NilPolicy(t *testing.T) {
	if got := Backoff(3, nil); got != time.Second {
		t.Errorf("Backoff with nil policy = %v, expected 1s", got)
	}
}

// EnhanceCaller Tests

func TestEnhanceCaller_AllSucceed(t *testing.T) {
	c := &EnhanceCaller{
		Enhancer: &fakeEnhancer{},
		Variants: testVariants("a", "b", "c"),
		Policy:   fastPolicy(1),
		Logger:   testLogger(),
	}

	prompts, err := c.Run(context.Background(), "remove the tree", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prompts) != 3 {
		t.Fatalf("expected 3 prompts, got %d", len(prompts))
	}

	// Каждый prompt привязан к своему варианту
	seen := make(map[string]bool)
	for _, p := range prompts {
		seen[p.Variant] = true
	}
	if !seen["a"] || !seen["b"] || !seen["c"] {
		t.Errorf("prompts should cover all variants, got %v", seen)
	}
}

func TestEnhanceCaller_PartialFailureDropped(t *testing.T) {
	c := &EnhanceCaller{
		Enhancer: &fakeEnhancer{fail: map[string]bool{"b": true}},
		Variants: testVariants("a", "b", "c"),
		Policy:   fastPolicy(2),
		Logger:   testLogger(),
	}

	prompts, err := c.Run(context.Background(), "remove the tree", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Упавший вариант выброшен, остальные не пострадали
	if len(prompts) != 2 {
		t.Fatalf("expected 2 prompts, got %d", len(prompts))
	}
	for _, p := range prompts {
		if p.Variant == "b" {
			t.Error("failed variant should be dropped")
		}
	}
}

func TestEnhanceCaller_AllFailed(t *testing.T) {
	c := &EnhanceCaller{
		Enhancer: &fakeEnhancer{fail: map[string]bool{"a": true, "b": true}},
		Variants: testVariants("a", "b"),
		Policy:   fastPolicy(1),
		Logger:   testLogger(),
	}

	_, err := c.Run(context.Background(), "remove the tree", nil)
	if !errors.Is(err, ErrAllEnhanceFailed) {
		t.Errorf("expected ErrAllEnhanceFailed, got %v", err)
	}
	if !IsAllFailed(err) {
		t.Error("IsAllFailed should report true")
	}
}

func TestEnhanceCaller_NoVariants(t *testing.T) {
	c := &EnhanceCaller{
		Enhancer: &fakeEnhancer{},
		Policy:   fastPolicy(1),
		Logger:   testLogger(),
	}

	_, err := c.Run(context.Background(), "x", nil)
	if !errors.Is(err, ErrNoVariants) {
		t.Errorf("expected ErrNoVariants, got %v", err)
	}
}

func TestEnhanceCaller_RetriesExhausted(t *testing.T) {
	enhancer := &fakeEnhancer{fail: map[string]bool{"a": true}}
	c := &EnhanceCaller{
		Enhancer: enhancer,
		Variants: testVariants("a"),
		Policy:   fastPolicy(3),
		Logger:   testLogger(),
	}

	_, err := c.Run(context.Background(), "x", nil)
	if !errors.Is(err, ErrAllEnhanceFailed) {
		t.Errorf("expected ErrAllEnhanceFailed, got %v", err)
	}

	// Все попытки retry израсходованы
	if enhancer.calls["a"] != 3 {
		t.Errorf("expected 3 attempts, got %d", enhancer.calls["a"])
	}
}

// GenerateCaller Tests

func TestGenerateCaller_PromptConsumedBySameVariant(t *testing.T) {
	c := &GenerateCaller{
		Generator: &fakeGenerator{},
		Variants:  testVariants("a", "b"),
		Policy:    fastPolicy(1),
		Logger:    testLogger(),
	}

	prompts := []domain.EnhancedPrompt{
		{Variant: "a", Text: "prompt-for-a"},
		{Variant: "b", Text: "prompt-for-b"},
	}

	candidates, err := c.Run(context.Background(), prompts, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}

	// Prompt варианта потребляется генерацией того же варианта
	for _, cand := range candidates {
		expected := fmt.Sprintf("%s: prompt-for-%s", cand.Variant, cand.Variant)
		if string(cand.Image) != expected {
			t.Errorf("candidate %s image = %q, expected %q", cand.Variant, cand.Image, expected)
		}
		if cand.Prompt == nil || cand.Prompt.Variant != cand.Variant {
			t.Errorf("candidate %s should carry its own prompt", cand.Variant)
		}
	}
}

func TestGenerateCaller_InvariantCandidatesLEPrompts(t *testing.T) {
	c := &GenerateCaller{
		Generator: &fakeGenerator{fail: map[string]bool{"b": true}},
		Variants:  testVariants("a", "b", "c"),
		Policy:    fastPolicy(1),
		Logger:    testLogger(),
	}

	prompts := []domain.EnhancedPrompt{
		{Variant: "a", Text: "p"},
		{Variant: "b", Text: "p"},
		{Variant: "c", Text: "p"},
	}

	candidates, err := c.Run(context.Background(), prompts, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) > len(prompts) {
		t.Errorf("candidates (%d) must not exceed prompts (%d)", len(candidates), len(prompts))
	}
	if len(candidates) != 2 {
		t.Errorf("expected 2 candidates, got %d", len(candidates))
	}
}

func TestGenerateCaller_UnknownVariant(t *testing.T) {
	c := &GenerateCaller{
		Generator: &fakeGenerator{},
		Variants:  testVariants("a"),
		Policy:    fastPolicy(1),
		Logger:    testLogger(),
	}

	prompts := []domain.EnhancedPrompt{{Variant: "ghost", Text: "p"}}

	_, err := c.Run(context.Background(), prompts, nil)
	if !errors.Is(err, ErrUnknownVariant) {
		t.Errorf("expected ErrUnknownVariant, got %v", err)
	}
}

func TestGenerateCaller_AllFailed(t *testing.T) {
	c := &GenerateCaller{
		Generator: &fakeGenerator{fail: map[string]bool{"a": true}},
		Variants:  testVariants("a"),
		Policy:    fastPolicy(1),
		Logger:    testLogger(),
	}

	prompts := []domain.EnhancedPrompt{{Variant: "a", Text: "p"}}

	_, err := c.Run(context.Background(), prompts, nil)
	if !errors.Is(err, ErrAllGenerateFailed) {
		t.Errorf("expected ErrAllGenerateFailed, got %v", err)
	}
}

// ValidateCaller Tests

func TestValidateCaller_VerdictBoundToCandidate(t *testing.T) {
	c := &ValidateCaller{
		Validator: &fakeValidator{scores: map[string]float64{"img-a": 9, "img-b": 5}},
		Variant:   provider.Variant{ID: "judge"},
		Policy:    fastPolicy(1),
		Logger:    testLogger(),
	}

	candidates := []*domain.Candidate{
		{Variant: "a", Image: []byte("img-a")},
		{Variant: "b", Image: []byte("img-b")},
	}

	verdicts, err := c.Run(context.Background(), nil, "instruction", candidates, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(verdicts) != 2 {
		t.Fatalf("expected 2 verdicts, got %d", len(verdicts))
	}

	// Каждый вердикт привязан к своему кандидату
	for _, v := range verdicts {
		if v.Candidate == nil {
			t.Fatal("verdict should carry its candidate")
		}
		expected := map[string]float64{"a": 9, "b": 5}[v.Candidate.Variant]
		if v.Score != expected {
			t.Errorf("verdict for %s: score %v, expected %v", v.Candidate.Variant, v.Score, expected)
		}
	}
}

func TestValidateCaller_InvariantVerdictsLECandidates(t *testing.T) {
	c := &ValidateCaller{
		Validator: &fakeValidator{
			scores: map[string]float64{"img-a": 9},
			fail:   map[string]bool{"img-b": true},
		},
		Variant: provider.Variant{ID: "judge"},
		Policy:  fastPolicy(1),
		Logger:  testLogger(),
	}

	candidates := []*domain.Candidate{
		{Variant: "a", Image: []byte("img-a")},
		{Variant: "b", Image: []byte("img-b")},
	}

	verdicts, err := c.Run(context.Background(), nil, "instruction", candidates, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(verdicts) > len(candidates) {
		t.Errorf("verdicts (%d) must not exceed candidates (%d)", len(verdicts), len(candidates))
	}
	if len(verdicts) != 1 {
		t.Errorf("expected 1 verdict, got %d", len(verdicts))
	}
}

func TestValidateCaller_SequentialOrder(t *testing.T) {
	validator := &fakeValidator{scores: map[string]float64{"img-1": 5, "img-2": 6, "img-3": 7}}
	c := &ValidateCaller{
		Validator:      validator,
		Variant:        provider.Variant{ID: "judge"},
		Policy:         fastPolicy(1),
		InterCallDelay: time.Millisecond,
		Logger:         testLogger(),
	}

	candidates := []*domain.Candidate{
		{Variant: "a", Image: []byte("img-1")},
		{Variant: "b", Image: []byte("img-2")},
		{Variant: "c", Image: []byte("img-3")},
	}

	verdicts, err := c.Run(context.Background(), nil, "instruction", candidates, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(verdicts) != 3 {
		t.Fatalf("expected 3 verdicts, got %d", len(verdicts))
	}

	// В последовательном режиме вызовы идут строго по порядку кандидатов
	expected := []string{"img-1", "img-2", "img-3"}
	for i, want := range expected {
		if validator.order[i] != want {
			t.Errorf("call %d: got %s, expected %s", i, validator.order[i], want)
		}
	}
}

func TestValidateCaller_EmptyCandidates(t *testing.T) {
	c := &ValidateCaller{
		Validator: &fakeValidator{},
		Variant:   provider.Variant{ID: "judge"},
		Policy:    fastPolicy(1),
		Logger:    testLogger(),
	}

	_, err := c.Run(context.Background(), nil, "instruction", nil, false)
	if !errors.Is(err, ErrAllValidateFailed) {
		t.Errorf("expected ErrAllValidateFailed, got %v", err)
	}
}
