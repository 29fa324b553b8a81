// Package row is the serialization boundary between typed tasks and the
// string-typed columns of the task table.
package row

import (
	"math"
	"strconv"
	"strings"

	"github.com/fastygo/taskpilot/domain"
)

// Columns is the physical column order of the task table.
var Columns = []string{
	"task_id",
	"title",
	"notes",
	"status",
	"priority",
	"effort_mins",
	"start_at",
	"due_at",
	"snoozed_until",
	"last_suggested_at",
	"context_days",
	"context_times",
	"tags",
	"source",
	"created_at",
	"updated_at",
	"version",
}

// Row holds one task as strings in Columns order.
type Row []string

// Encode flattens a task into a row.
func Encode(t *domain.Task) Row {
	effort := ""
	if t.EffortMins != nil {
		effort = strconv.Itoa(*t.EffortMins)
	}
	return Row{
		t.ID,
		t.Title,
		t.Notes,
		string(t.Status),
		strconv.Itoa(t.Priority),
		effort,
		t.StartAt,
		t.DueAt,
		t.SnoozedUntil,
		t.LastSuggestedAt,
		t.ContextDays,
		t.ContextTimes,
		t.Tags,
		t.Source,
		t.CreatedAt,
		t.UpdatedAt,
		strconv.Itoa(t.Version),
	}
}

// Decode rebuilds a task, coercing numeric columns. Blank priority reads as 3,
// blank version as 1 and blank effort as absent. Short rows are padded.
func Decode(r Row) domain.Task {
	get := func(i int) string {
		if i < len(r) {
			return strings.TrimSpace(r[i])
		}
		return ""
	}
	t := domain.Task{
		ID:              get(0),
		Title:           get(1),
		Notes:           get(2),
		Status:          domain.Status(strings.ToUpper(get(3))),
		Priority:        coerceInt(get(4), domain.DefaultPriority),
		StartAt:         get(6),
		DueAt:           get(7),
		SnoozedUntil:    get(8),
		LastSuggestedAt: get(9),
		ContextDays:     get(10),
		ContextTimes:    get(11),
		Tags:            get(12),
		Source:          get(13),
		CreatedAt:       get(14),
		UpdatedAt:       get(15),
		Version:         coerceInt(get(16), 1),
	}
	if effort := get(5); effort != "" {
		if v, ok := parseNumber(effort); ok {
			t.EffortMins = &v
		}
	}
	return t
}

func coerceInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	if v, ok := parseNumber(value); ok {
		return v
	}
	return fallback
}

// parseNumber accepts integers and integral floats such as "3.0".
func parseNumber(value string) (int, bool) {
	if v, err := strconv.Atoi(value); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(math.Round(f)), true
}
