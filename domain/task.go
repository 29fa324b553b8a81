package domain

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a task. Transitions are unrestricted.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCanceled  Status = "CANCELED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// TimeBucket is a coarse part of the day derived from configured boundaries.
type TimeBucket string

const (
	BucketMorning   TimeBucket = "MORNING"
	BucketAfternoon TimeBucket = "AFTERNOON"
	BucketEvening   TimeBucket = "EVENING"
	BucketNight     TimeBucket = "NIGHT"
)

// Valid reports whether b is one of the four buckets.
func (b TimeBucket) Valid() bool {
	switch b {
	case BucketMorning, BucketAfternoon, BucketEvening, BucketNight:
		return true
	}
	return false
}

// WeekdayCodes lists the short day codes accepted in contextDays.
var WeekdayCodes = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// CanonicalWeekday maps any casing of a short day code to its canonical form.
func CanonicalWeekday(code string) (string, bool) {
	code = strings.TrimSpace(code)
	for _, day := range WeekdayCodes {
		if strings.EqualFold(day, code) {
			return day, true
		}
	}
	return "", false
}

const (
	DefaultPriority = 3
	MinPriority     = 1
	MaxPriority     = 5
	MaxTitleLength  = 140
	MinEffortMins   = 1
	MaxEffortMins   = 1440
)

// Task is the central tracked entity. Timestamps hold the canonical
// timezone-qualified ISO form, or "" when absent.
type Task struct {
	ID              string `json:"taskId"`
	Title           string `json:"title"`
	Notes           string `json:"notes"`
	Tags            string `json:"tags"`
	Source          string `json:"source"`
	Status          Status `json:"status"`
	Priority        int    `json:"priority"`
	EffortMins      *int   `json:"effortMins"`
	StartAt         string `json:"startAt"`
	DueAt           string `json:"dueAt"`
	SnoozedUntil    string `json:"snoozedUntil"`
	LastSuggestedAt string `json:"lastSuggestedAt"`
	ContextDays     string `json:"contextDays"`
	ContextTimes    string `json:"contextTimes"`
	CreatedAt       string `json:"createdAt"`
	UpdatedAt       string `json:"updatedAt"`
	Version         int    `json:"version"`
}

func (t *Task) IsActive() bool {
	return t != nil && t.Status == StatusActive
}

func (t *Task) IsCompleted() bool {
	return t != nil && t.Status == StatusCompleted
}

// Clone returns a deep copy.
func (t Task) Clone() Task {
	if t.EffortMins != nil {
		v := *t.EffortMins
		t.EffortMins = &v
	}
	return t
}

// Touch bumps the optimistic-concurrency token and the modification time.
func (t *Task) Touch(now time.Time, loc *time.Location) {
	t.Version++
	t.UpdatedAt = FormatTimestamp(now, loc)
}

// StampIntent asks for a task's lastSuggestedAt to be set after it was recommended.
type StampIntent struct {
	TaskID      string    `json:"task_id"`
	SuggestedAt time.Time `json:"suggested_at"`
}

// TimestampLayout is the canonical stored timestamp form.
const TimestampLayout = "2006-01-02T15:04:05Z07:00"

var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 datetime. Values without an offset are
// interpreted in loc. Empty or malformed input reports false.
func ParseTimestamp(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTimestamp renders t in loc using the canonical layout.
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(TimestampLayout)
}

// SplitList splits a comma-joined field, dropping blanks.
func SplitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinList is the inverse of SplitList.
func JoinList(items []string) string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return strings.Join(out, ",")
}
