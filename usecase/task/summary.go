package task

import (
	"context"
	"time"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/internal/temporal"
	"github.com/fastygo/taskpilot/usecase/recommend"
)

// Summary is the analytics view of the task table at one instant.
type Summary struct {
	GeneratedAt string           `json:"generatedAt"`
	Context     temporal.Context `json:"context"`
	Total       int              `json:"total"`
	ByStatus    map[string]int   `json:"byStatus"`
	Active      ActiveSummary    `json:"active"`
}

// ActiveSummary breaks down ACTIVE tasks. Categories overlap.
type ActiveSummary struct {
	Total        int `json:"total"`
	Overdue      int `json:"overdue"`
	DueWithin24h int `json:"dueWithin24h"`
	Snoozed      int `json:"snoozed"`
	NotStarted   int `json:"notStarted"`
	EligibleNow  int `json:"eligibleNow"`
}

func (uc *UseCase) Summary(ctx context.Context) (*Summary, error) {
	s := uc.scheduling()
	now := uc.clock.Now()
	tc := temporal.Resolve(now, s.Location, s.Boundaries)

	tasks, err := uc.tasks.ReadAll(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		GeneratedAt: domain.FormatTimestamp(now, s.Location),
		Context:     tc,
		Total:       len(tasks),
		ByStatus: map[string]int{
			string(domain.StatusActive):    0,
			string(domain.StatusCompleted): 0,
			string(domain.StatusCanceled):  0,
		},
	}
	for i := range tasks {
		t := &tasks[i]
		summary.ByStatus[string(t.Status)]++
		if !t.IsActive() {
			continue
		}
		a := &summary.Active
		a.Total++
		if due, ok := domain.ParseTimestamp(t.DueAt, s.Location); ok {
			switch until := due.Sub(now); {
			case until < 0:
				a.Overdue++
			case until <= 24*time.Hour:
				a.DueWithin24h++
			}
		}
		if until, ok := domain.ParseTimestamp(t.SnoozedUntil, s.Location); ok && now.Before(until) {
			a.Snoozed++
		}
		if start, ok := domain.ParseTimestamp(t.StartAt, s.Location); ok && now.Before(start) {
			a.NotStarted++
		}
		if recommend.Eligible(t, now, tc, s.Location) {
			a.EligibleNow++
		}
	}
	return summary, nil
}
