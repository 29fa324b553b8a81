package recommend

import (
	"strings"
	"time"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/internal/temporal"
)

// Eligible reports whether task is actionable at now. Unparseable start and
// snooze timestamps are treated as absent.
func Eligible(task *domain.Task, now time.Time, tc temporal.Context, loc *time.Location) bool {
	if task == nil || task.Status != domain.StatusActive {
		return false
	}
	if startAt, ok := domain.ParseTimestamp(task.StartAt, loc); ok && now.Before(startAt) {
		return false
	}
	if snoozed, ok := domain.ParseTimestamp(task.SnoozedUntil, loc); ok && now.Before(snoozed) {
		return false
	}
	if days := domain.SplitList(task.ContextDays); len(days) > 0 && !containsFold(days, tc.WeekdayShort) {
		return false
	}
	if times := domain.SplitList(task.ContextTimes); len(times) > 0 && !containsFold(times, string(tc.TimeBucket)) {
		return false
	}
	return true
}

func containsFold(items []string, want string) bool {
	for _, item := range items {
		if strings.EqualFold(item, want) {
			return true
		}
	}
	return false
}
