// Package recommend decides which task should be worked on next.
package recommend

import (
	"sort"
	"time"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/internal/temporal"
)

const maxAlternatives = 3

// Options carries the per-request scheduling settings.
type Options struct {
	Location   *time.Location
	Boundaries temporal.Boundaries
	Cooldown   time.Duration
}

// Suggestion is a scored candidate.
type Suggestion struct {
	Task      domain.Task `json:"task"`
	Score     int         `json:"score"`
	Breakdown Breakdown   `json:"breakdown"`
}

// Alternative is a runner-up reported by id and score only.
type Alternative struct {
	TaskID string `json:"taskId"`
	Score  int    `json:"score"`
}

// Result is the outcome of a selection. Stamp, when set, is the follow-up
// mutation the caller should attempt on a best-effort basis.
type Result struct {
	Now          time.Time           `json:"now"`
	Context      temporal.Context    `json:"context"`
	Best         *Suggestion         `json:"best"`
	Alternatives []Alternative       `json:"alternatives"`
	Considered   int                 `json:"considered"`
	Eligible     int                 `json:"eligible"`
	Stamp        *domain.StampIntent `json:"-"`
}

type candidate struct {
	Suggestion
	due       time.Time
	hasDue    bool
	createdAt time.Time
}

// Select filters, scores and orders tasks, returning the best one and up to
// three alternatives. It has no side effects.
func Select(tasks []domain.Task, now time.Time, opts Options) Result {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	cooldown := opts.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	tc := temporal.Resolve(now, loc, opts.Boundaries)

	result := Result{
		Now:          now.In(loc),
		Context:      tc,
		Alternatives: []Alternative{},
		Considered:   len(tasks),
	}

	candidates := make([]candidate, 0, len(tasks))
	for i := range tasks {
		task := &tasks[i]
		if !Eligible(task, now, tc, loc) {
			continue
		}
		breakdown := Score(task, now, tc, loc, cooldown)
		c := candidate{
			Suggestion: Suggestion{Task: task.Clone(), Score: breakdown.Total, Breakdown: breakdown},
		}
		c.due, c.hasDue = domain.ParseTimestamp(task.DueAt, loc)
		// absent or malformed createdAt sorts as the earliest possible instant
		c.createdAt, _ = domain.ParseTimestamp(task.CreatedAt, loc)
		candidates = append(candidates, c)
	}
	result.Eligible = len(candidates)
	if len(candidates) == 0 {
		return result
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return less(&candidates[i], &candidates[j])
	})

	best := candidates[0].Suggestion
	result.Best = &best
	for _, c := range candidates[1:] {
		if len(result.Alternatives) == maxAlternatives {
			break
		}
		result.Alternatives = append(result.Alternatives, Alternative{TaskID: c.Task.ID, Score: c.Score})
	}
	result.Stamp = &domain.StampIntent{TaskID: best.Task.ID, SuggestedAt: now}
	return result
}

func less(a, b *candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.hasDue != b.hasDue {
		return a.hasDue
	}
	if a.hasDue && !a.due.Equal(b.due) {
		return a.due.Before(b.due)
	}
	if a.Task.Priority != b.Task.Priority {
		return a.Task.Priority > b.Task.Priority
	}
	if !a.createdAt.Equal(b.createdAt) {
		return a.createdAt.Before(b.createdAt)
	}
	return a.Task.ID < b.Task.ID
}
