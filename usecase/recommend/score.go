package recommend

import (
	"fmt"
	"time"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/internal/temporal"
)

const (
	DefaultCooldown = 120 * time.Minute

	dueOverduePoints  = 40
	dueSoonPoints     = 30
	dueTodayPoints    = 20
	dueLaterPoints    = 10
	dueSoonWindow     = 4 * time.Hour
	dueTodayWindow    = 24 * time.Hour
	priorityWeight    = 5
	effortFitPoints   = 10
	effortBasePoints  = 5
	effortFitMin      = 30
	effortFitMax      = 90
	contextDayPoints  = 5
	contextTimePoints = 10
	cooldownPenalty   = -20
)

// Breakdown is the per-rule contribution to a task's relevance score.
type Breakdown struct {
	Due      int      `json:"due"`
	Priority int      `json:"priority"`
	Effort   int      `json:"effort"`
	Context  int      `json:"context"`
	Cooldown int      `json:"cooldown"`
	Total    int      `json:"total"`
	Reasons  []string `json:"reasons"`
}

// Score applies the five additive rules. The total is unbounded and may be negative.
func Score(task *domain.Task, now time.Time, tc temporal.Context, loc *time.Location, cooldown time.Duration) Breakdown {
	var b Breakdown
	b.Due = b.scoreDue(task, now, loc)
	b.Priority = b.scorePriority(task)
	b.Effort = b.scoreEffort(task, tc)
	b.Context = b.scoreContext(task)
	b.Cooldown = b.scoreCooldown(task, now, loc, cooldown)
	b.Total = b.Due + b.Priority + b.Effort + b.Context + b.Cooldown
	return b
}

func (b *Breakdown) note(format string, args ...any) {
	b.Reasons = append(b.Reasons, fmt.Sprintf(format, args...))
}

func (b *Breakdown) scoreDue(task *domain.Task, now time.Time, loc *time.Location) int {
	due, ok := domain.ParseTimestamp(task.DueAt, loc)
	if !ok {
		return 0
	}
	until := due.Sub(now)
	switch {
	case until < 0:
		b.note("overdue by %s (+%d)", roundDuration(-until), dueOverduePoints)
		return dueOverduePoints
	case until <= dueSoonWindow:
		b.note("due within 4h (+%d)", dueSoonPoints)
		return dueSoonPoints
	case until <= dueTodayWindow:
		b.note("due within 24h (+%d)", dueTodayPoints)
		return dueTodayPoints
	default:
		b.note("due in %s (+%d)", roundDuration(until), dueLaterPoints)
		return dueLaterPoints
	}
}

func (b *Breakdown) scorePriority(task *domain.Task) int {
	p := task.Priority
	if p < domain.MinPriority {
		p = domain.MinPriority
	}
	if p > domain.MaxPriority {
		p = domain.MaxPriority
	}
	points := p * priorityWeight
	b.note("priority %d (+%d)", p, points)
	return points
}

func (b *Breakdown) scoreEffort(task *domain.Task, tc temporal.Context) int {
	if task.EffortMins == nil {
		return 0
	}
	effort := *task.EffortMins
	if tc.TimeBucket == domain.BucketMorning && effort >= effortFitMin && effort <= effortFitMax {
		b.note("%dm fits a morning block (+%d)", effort, effortFitPoints)
		return effortFitPoints
	}
	b.note("effort %dm (+%d)", effort, effortBasePoints)
	return effortBasePoints
}

// Context points reward specificity; eligibility has already enforced the match.
func (b *Breakdown) scoreContext(task *domain.Task) int {
	points := 0
	if len(domain.SplitList(task.ContextDays)) > 0 {
		points += contextDayPoints
		b.note("day context %s (+%d)", task.ContextDays, contextDayPoints)
	}
	if len(domain.SplitList(task.ContextTimes)) > 0 {
		points += contextTimePoints
		b.note("time context %s (+%d)", task.ContextTimes, contextTimePoints)
	}
	return points
}

func (b *Breakdown) scoreCooldown(task *domain.Task, now time.Time, loc *time.Location, cooldown time.Duration) int {
	last, ok := domain.ParseTimestamp(task.LastSuggestedAt, loc)
	if !ok {
		return 0
	}
	since := now.Sub(last)
	if since < 0 || since > cooldown {
		return 0
	}
	b.note("suggested %s ago (%d)", roundDuration(since), cooldownPenalty)
	return cooldownPenalty
}

func roundDuration(d time.Duration) time.Duration {
	return d.Round(time.Minute)
}
