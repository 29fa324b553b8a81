package task

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fastygo/taskpilot/domain"
)

// ValidateCreate checks a create payload. Nothing is written on failure.
func ValidateCreate(f Fields, loc *time.Location) error {
	if !f.Title.Present() {
		return domain.ValidationError("title", "title is required", nil)
	}
	if err := validateFields(f, loc); err != nil {
		return err
	}
	start, _ := parseField(f.StartAt, loc)
	due, _ := parseField(f.DueAt, loc)
	return validateOrder(start, due)
}

// ValidatePatch checks a patch against the stored task. startAt/dueAt ordering
// is evaluated on the values the task would have after the patch, and only
// when the patch touches one of them.
func ValidatePatch(f Fields, existing *domain.Task, loc *time.Location) error {
	if f.Title.Set && !f.Title.Present() {
		return domain.ValidationError("title", "title cannot be empty", nil)
	}
	if f.Status.Set && !f.Status.Present() {
		return domain.ValidationError("status", "status cannot be empty", map[string]any{"allowed": statusCodes()})
	}
	if err := validateFields(f, loc); err != nil {
		return err
	}

	start, startSet := parseField(f.StartAt, loc)
	due, dueSet := parseField(f.DueAt, loc)
	if !startSet && !dueSet {
		return nil
	}
	if !startSet && existing != nil {
		start, _ = domain.ParseTimestamp(existing.StartAt, loc)
	}
	if !dueSet && existing != nil {
		due, _ = domain.ParseTimestamp(existing.DueAt, loc)
	}
	return validateOrder(start, due)
}

func validateFields(f Fields, loc *time.Location) error {
	if f.Title.Present() {
		if n := utf8.RuneCountInString(strings.TrimSpace(f.Title.Value)); n > domain.MaxTitleLength {
			return domain.ValidationError("title", fmt.Sprintf("title must be at most %d characters", domain.MaxTitleLength),
				map[string]any{"length": n, "max": domain.MaxTitleLength})
		}
	}
	if f.Status.Present() {
		if !domain.Status(strings.ToUpper(strings.TrimSpace(f.Status.Value))).Valid() {
			return domain.ValidationError("status", fmt.Sprintf("invalid status %q", f.Status.Value),
				map[string]any{"allowed": statusCodes()})
		}
	}
	if f.Priority.Present() {
		if p := f.Priority.Value; p < domain.MinPriority || p > domain.MaxPriority {
			return domain.ValidationError("priority", "priority must be between 1 and 5",
				map[string]any{"value": p, "min": domain.MinPriority, "max": domain.MaxPriority})
		}
	}
	if f.EffortMins.Present() {
		if e := f.EffortMins.Value; e < domain.MinEffortMins || e > domain.MaxEffortMins {
			return domain.ValidationError("effortMins", "effortMins must be between 1 and 1440",
				map[string]any{"value": e, "min": domain.MinEffortMins, "max": domain.MaxEffortMins})
		}
	}
	for _, ts := range []struct {
		name  string
		field Optional[string]
	}{
		{"startAt", f.StartAt},
		{"dueAt", f.DueAt},
		{"snoozedUntil", f.SnoozedUntil},
	} {
		if !ts.field.Present() {
			continue
		}
		if _, ok := domain.ParseTimestamp(ts.field.Value, loc); !ok {
			return domain.ValidationError(ts.name, fmt.Sprintf("%s must be an ISO-8601 datetime", ts.name),
				map[string]any{"value": ts.field.Value})
		}
	}
	if f.ContextDays.Present() {
		for _, day := range f.ContextDays.Value {
			if _, ok := domain.CanonicalWeekday(day); !ok {
				return domain.ValidationError("contextDays", fmt.Sprintf("unknown weekday %q", day),
					map[string]any{"allowed": domain.WeekdayCodes})
			}
		}
	}
	if f.ContextTimes.Present() {
		for _, bucket := range f.ContextTimes.Value {
			if !domain.TimeBucket(strings.ToUpper(bucket)).Valid() {
				return domain.ValidationError("contextTimes", fmt.Sprintf("unknown time bucket %q", bucket),
					map[string]any{"allowed": bucketCodes()})
			}
		}
	}
	return nil
}

func validateOrder(start, due time.Time) error {
	if start.IsZero() || due.IsZero() {
		return nil
	}
	if due.Before(start) {
		return domain.ValidationError("dueAt", "dueAt must not be before startAt", map[string]any{
			"startAt": start.Format(time.RFC3339),
			"dueAt":   due.Format(time.RFC3339),
		})
	}
	return nil
}

// parseField reports the parsed value and whether the patch supplied the field at all.
// A field set to blank clears the stored value, so it parses as zero.
func parseField(o Optional[string], loc *time.Location) (time.Time, bool) {
	if !o.Set {
		return time.Time{}, false
	}
	if !o.Present() {
		return time.Time{}, true
	}
	t, _ := domain.ParseTimestamp(o.Value, loc)
	return t, true
}

func statusCodes() []string {
	return []string{string(domain.StatusActive), string(domain.StatusCompleted), string(domain.StatusCanceled)}
}

func bucketCodes() []string {
	return []string{string(domain.BucketMorning), string(domain.BucketAfternoon), string(domain.BucketEvening), string(domain.BucketNight)}
}
