package row

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/fastygo/taskpilot/domain"
)

func TestEncodeDecodePreservesTask(t *testing.T) {
	effort := 45
	task := domain.Task{
		ID:           "t-1",
		Title:        "Write report",
		Notes:        "draft first",
		Status:       domain.StatusActive,
		Priority:     4,
		EffortMins:   &effort,
		DueAt:        "2025-03-12T17:00:00Z",
		ContextDays:  "Mon,Wed",
		ContextTimes: "MORNING",
		Tags:         "work,writing",
		Source:       "api",
		CreatedAt:    "2025-03-10T08:00:00Z",
		UpdatedAt:    "2025-03-11T08:00:00Z",
		Version:      7,
	}

	r := Encode(&task)
	if len(r) != len(Columns) {
		t.Fatalf("row has %d cells, want %d", len(r), len(Columns))
	}
	if diff := cmp.Diff(task, Decode(r)); diff != "" {
		t.Fatalf("decode mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeCoercesBlankAndLooseNumbers(t *testing.T) {
	r := Row{"t-2", " Title ", "", "active", "", "30.0", "", "", "", "", "", "", "", "", "", "", ""}
	got := Decode(r)

	if got.Priority != domain.DefaultPriority {
		t.Errorf("priority = %d, want default %d", got.Priority, domain.DefaultPriority)
	}
	if got.Version != 1 {
		t.Errorf("version = %d, want 1", got.Version)
	}
	if got.EffortMins == nil || *got.EffortMins != 30 {
		t.Errorf("effort = %v, want 30", got.EffortMins)
	}
	if got.Status != domain.StatusActive {
		t.Errorf("status = %q, want ACTIVE", got.Status)
	}
	if got.Title != "Title" {
		t.Errorf("title = %q, want trimmed", got.Title)
	}
}

func TestDecodeShortRowAndGarbage(t *testing.T) {
	got := Decode(Row{"t-3", "Short", "", "CANCELED", "high", "lots"})
	if got.Priority != domain.DefaultPriority {
		t.Errorf("priority = %d, want default", got.Priority)
	}
	if got.EffortMins != nil {
		t.Errorf("effort = %v, want absent", *got.EffortMins)
	}
	if got.Version != 1 {
		t.Errorf("version = %d, want 1", got.Version)
	}
}
