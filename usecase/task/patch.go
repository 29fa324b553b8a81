package task

import (
	"strings"
	"time"

	"github.com/fastygo/taskpilot/domain"
)

// ApplyPatch returns a copy of existing with the supplied fields overwritten
// and normalized. version and updatedAt are left to the caller.
func ApplyPatch(existing domain.Task, f Fields, loc *time.Location) domain.Task {
	next := existing.Clone()
	normalizeInto(&next, f, loc)
	return next
}

func normalizeInto(t *domain.Task, f Fields, loc *time.Location) {
	if f.Title.Set {
		t.Title = strings.TrimSpace(f.Title.Value)
	}
	if f.Notes.Set {
		t.Notes = strings.TrimSpace(f.Notes.Value)
	}
	if f.Source.Set {
		t.Source = strings.TrimSpace(f.Source.Value)
	}
	if f.Status.Set {
		t.Status = domain.Status(strings.ToUpper(strings.TrimSpace(f.Status.Value)))
	}
	if f.Priority.Set {
		t.Priority = domain.DefaultPriority
		if f.Priority.Present() {
			t.Priority = f.Priority.Value
		}
	}
	if f.EffortMins.Set {
		t.EffortMins = nil
		if f.EffortMins.Present() {
			v := f.EffortMins.Value
			t.EffortMins = &v
		}
	}
	if f.Tags.Set {
		t.Tags = domain.JoinList(f.Tags.Value)
	}
	if f.ContextDays.Set {
		days := make([]string, 0, len(f.ContextDays.Value))
		for _, d := range f.ContextDays.Value {
			if canonical, ok := domain.CanonicalWeekday(d); ok {
				d = canonical
			}
			days = append(days, d)
		}
		t.ContextDays = domain.JoinList(days)
	}
	if f.ContextTimes.Set {
		buckets := make([]string, 0, len(f.ContextTimes.Value))
		for _, b := range f.ContextTimes.Value {
			buckets = append(buckets, strings.ToUpper(b))
		}
		t.ContextTimes = domain.JoinList(buckets)
	}
	if f.StartAt.Set {
		t.StartAt = canonicalTimestamp(f.StartAt, loc)
	}
	if f.DueAt.Set {
		t.DueAt = canonicalTimestamp(f.DueAt, loc)
	}
	if f.SnoozedUntil.Set {
		t.SnoozedUntil = canonicalTimestamp(f.SnoozedUntil, loc)
	}
}

func canonicalTimestamp(o Optional[string], loc *time.Location) string {
	if !o.Present() {
		return ""
	}
	if parsed, ok := domain.ParseTimestamp(o.Value, loc); ok {
		return domain.FormatTimestamp(parsed, loc)
	}
	return strings.TrimSpace(o.Value)
}
