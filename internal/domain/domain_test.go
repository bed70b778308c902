package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseEditStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected EditStatus
	}{
		{"PENDING", EditStatusPending},
		{"RUNNING", EditStatusRunning},
		{"SUCCEEDED", EditStatusSucceeded},
		{"ESCALATED", EditStatusEscalated},
		// Неизвестное значение безопасно деградирует в PENDING
		{"bogus", EditStatusPending},
		{"", EditStatusPending},
	}

	for _, tt := range tests {
		if status := ParseEditStatus(tt.input); status != tt.expected {
			t.Errorf("ParseEditStatus(%q) = %s, expected %s", tt.input, status, tt.expected)
		}
	}
}

func TestEditStatus_IsTerminal(t *testing.T) {
	if EditStatusPending.IsTerminal() {
		t.Error("PENDING should not be terminal")
	}
	if EditStatusRunning.IsTerminal() {
		t.Error("RUNNING should not be terminal")
	}
	if !EditStatusSucceeded.IsTerminal() {
		t.Error("SUCCEEDED should be terminal")
	}
	if !EditStatusEscalated.IsTerminal() {
		t.Error("ESCALATED should be terminal")
	}
}

func TestEditTask_Lifecycle(t *testing.T) {
	task := &EditTask{
		ID:          uuid.New(),
		Instruction: "remove the background",
		Status:      EditStatusPending,
	}

	if task.IsFinished() {
		t.Error("pending task should not be finished")
	}

	task.MarkRunning()
	if task.Status != EditStatusRunning {
		t.Errorf("expected RUNNING, got %s", task.Status)
	}
	if task.StartedAt == nil {
		t.Error("StartedAt should be set")
	}

	task.MarkSucceeded([]byte("image-bytes"), "gpt-image-1", 2)
	if task.Status != EditStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", task.Status)
	}
	if string(task.ResultImage) != "image-bytes" {
		t.Error("result image not stored")
	}
	if task.WinningVariant != "gpt-image-1" {
		t.Errorf("expected winning variant gpt-image-1, got %s", task.WinningVariant)
	}
	if task.Iterations != 2 {
		t.Errorf("expected 2 iterations, got %d", task.Iterations)
	}
	if !task.IsFinished() {
		t.Error("succeeded task should be finished")
	}
	if task.Duration() < 0 {
		t.Error("duration should not be negative")
	}
}

func TestEditTask_MarkEscalated(t *testing.T) {
	task := &EditTask{ID: uuid.New(), Status: EditStatusRunning}

	task.MarkEscalated("manual review required", 3)
	if task.Status != EditStatusEscalated {
		t.Errorf("expected ESCALATED, got %s", task.Status)
	}
	if task.Escalation != "manual review required" {
		t.Error("escalation summary not stored")
	}
	if task.FinishedAt == nil {
		t.Error("FinishedAt should be set")
	}
}

func TestIssueUnion(t *testing.T) {
	records := []IterationRecord{
		{
			Index: 1,
			Verdicts: []ValidationVerdict{
				{Issues: []string{"logo too small", "wrong shade of blue"}},
				{Issues: []string{"wrong shade of blue"}},
			},
		},
		{
			Index: 2,
			Verdicts: []ValidationVerdict{
				{Issues: []string{"logo too small", "text is blurry", ""}},
			},
		},
	}

	issues := IssueUnion(records)

	expected := []string{"logo too small", "wrong shade of blue", "text is blurry"}
	if len(issues) != len(expected) {
		t.Fatalf("expected %d issues, got %d: %v", len(expected), len(issues), issues)
	}
	// Порядок первого появления сохраняется
	for i, want := range expected {
		if issues[i] != want {
			t.Errorf("issues[%d] = %q, expected %q", i, issues[i], want)
		}
	}
}

func TestIssueUnion_Empty(t *testing.T) {
	if issues := IssueUnion(nil); len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues)
	}
}

func TestVariantSet(t *testing.T) {
	records := []IterationRecord{
		{
			Prompts: []EnhancedPrompt{
				{Variant: "gemini-flash-image"},
				{Variant: "gpt-image-1"},
			},
			Candidates: []*Candidate{
				{Variant: "gpt-image-1"},
			},
		},
		{
			Prompts: []EnhancedPrompt{{Variant: "gpt-image-1"}},
		},
	}

	variants := VariantSet(records)

	// Отсортированный набор без дубликатов
	if len(variants) != 2 {
		t.Fatalf("expected 2 variants, got %v", variants)
	}
	if variants[0] != "gemini-flash-image" || variants[1] != "gpt-image-1" {
		t.Errorf("unexpected variant set: %v", variants)
	}
}

func TestTaskLock_Expired(t *testing.T) {
	now := time.Now()
	lock := TaskLock{
		TaskID:     uuid.New(),
		AcquiredAt: now,
		TTL:        time.Hour,
	}

	if lock.Expired(now.Add(30 * time.Minute)) {
		t.Error("lock should not be expired before TTL")
	}
	if !lock.Expired(now.Add(61 * time.Minute)) {
		t.Error("lock should be expired after TTL")
	}
}

func TestEscalationSummary_Text(t *testing.T) {
	summary := &EscalationSummary{
		TaskID:      uuid.New(),
		Instruction: "make the sky purple and add a moon",
		Iterations:  3,
		Issues:      []string{"sky color unchanged", "moon missing"},
		Variants:    []string{"gemini-flash-image", "gpt-image-1"},
	}

	text := summary.Text()
	if text == "" {
		t.Fatal("summary text should not be empty")
	}
	for _, want := range []string{"make the sky purple", "sky color unchanged", "gpt-image-1"} {
		if !strings.Contains(text, want) {
			t.Errorf("summary text should contain %q:\n%s", want, text)
		}
	}
}
