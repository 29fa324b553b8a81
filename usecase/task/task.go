package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/internal/temporal"
	appLogger "github.com/fastygo/taskpilot/pkg/logger"
	"github.com/fastygo/taskpilot/repository"
	"github.com/fastygo/taskpilot/usecase"
	"github.com/fastygo/taskpilot/usecase/recommend"
)

// Unconditioned writes that lose the version race are re-applied this many times.
const maxWriteAttempts = 3

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxSnoozeMinutes = 365 * 24 * 60
)

type UseCase struct {
	tasks    repository.TaskRepository
	settings usecase.SettingsProvider
	clock    usecase.Clock
	buffer   usecase.StampBuffer
	logger   *zap.Logger
}

func New(
	tasks repository.TaskRepository,
	settings usecase.SettingsProvider,
	clock usecase.Clock,
	buffer usecase.StampBuffer,
	logger *zap.Logger,
) *UseCase {
	if clock == nil {
		clock = usecase.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:    tasks,
		settings: settings,
		clock:    clock,
		buffer:   buffer,
		logger:   logger,
	}
}

// Filter narrows List results.
type Filter struct {
	Status string
	Query  string
	Limit  int
}

// SnoozeInput defers a task until an instant or for a number of minutes.
type SnoozeInput struct {
	Until   Optional[string]
	Minutes Optional[int]
}

func (uc *UseCase) scheduling() temporal.Settings {
	s := temporal.DefaultSettings()
	if uc.settings != nil {
		s = uc.settings.Scheduling()
	}
	if s.Location == nil {
		s.Location = time.UTC
	}
	if s.Cooldown <= 0 {
		s.Cooldown = recommend.DefaultCooldown
	}
	return s
}

func (uc *UseCase) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	_, task, err := uc.tasks.FindByID(ctx, id)
	return task, err
}

func (uc *UseCase) ListTasks(ctx context.Context, filter Filter) ([]domain.Task, error) {
	status := domain.Status(strings.ToUpper(strings.TrimSpace(filter.Status)))
	if status != "" && !status.Valid() {
		return nil, domain.ValidationError("status", "invalid status filter", map[string]any{"allowed": statusCodes()})
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	query := strings.ToLower(strings.TrimSpace(filter.Query))

	all, err := uc.tasks.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0, min(limit, len(all)))
	for _, t := range all {
		if status != "" && t.Status != status {
			continue
		}
		if query != "" && !matchesQuery(t, query) {
			continue
		}
		out = append(out, t)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func matchesQuery(t domain.Task, query string) bool {
	for _, field := range []string{t.Title, t.Notes, t.Tags} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func (uc *UseCase) CreateTask(ctx context.Context, f Fields) (*domain.Task, error) {
	s := uc.scheduling()
	if err := ValidateCreate(f, s.Location); err != nil {
		return nil, err
	}

	now := domain.FormatTimestamp(uc.clock.Now(), s.Location)
	task := domain.Task{
		ID:        uuid.NewString(),
		Status:    domain.StatusActive,
		Priority:  domain.DefaultPriority,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
	normalizeInto(&task, f, s.Location)
	if task.Status == "" {
		task.Status = domain.StatusActive
	}

	if err := uc.tasks.Insert(ctx, &task); err != nil {
		return nil, err
	}
	appLogger.WithTraceID(ctx, uc.logger).Info("task created", zap.String("task_id", task.ID))
	return &task, nil
}

// PatchTask applies f. When expectedVersion is set it must equal the stored
// version, otherwise the write is refused with VERSION_CONFLICT.
func (uc *UseCase) PatchTask(ctx context.Context, id string, f Fields, expectedVersion *int) (*domain.Task, error) {
	s := uc.scheduling()
	return uc.mutate(ctx, id, expectedVersion, func(current domain.Task) (domain.Task, bool, error) {
		if err := ValidatePatch(f, &current, s.Location); err != nil {
			return current, false, err
		}
		return ApplyPatch(current, f, s.Location), true, nil
	})
}

// CompleteTask marks a task COMPLETED. Completing an already completed task
// changes nothing, including its version.
func (uc *UseCase) CompleteTask(ctx context.Context, id string) (*domain.Task, error) {
	return uc.mutate(ctx, id, nil, func(current domain.Task) (domain.Task, bool, error) {
		if current.IsCompleted() {
			return current, false, nil
		}
		next := current.Clone()
		next.Status = domain.StatusCompleted
		return next, true, nil
	})
}

func (uc *UseCase) SnoozeTask(ctx context.Context, id string, in SnoozeInput) (*domain.Task, error) {
	s := uc.scheduling()
	var until time.Time
	switch {
	case in.Until.Present():
		parsed, ok := domain.ParseTimestamp(in.Until.Value, s.Location)
		if !ok {
			return nil, domain.ValidationError("until", "until must be an ISO-8601 datetime", map[string]any{"value": in.Until.Value})
		}
		until = parsed
	case in.Minutes.Present():
		if m := in.Minutes.Value; m < 1 || m > maxSnoozeMinutes {
			return nil, domain.ValidationError("minutes", "minutes must be between 1 and 525600", map[string]any{"value": m})
		}
		until = uc.clock.Now().Add(time.Duration(in.Minutes.Value) * time.Minute)
	default:
		return nil, domain.ValidationError("until", "either until or minutes is required", nil)
	}

	return uc.mutate(ctx, id, nil, func(current domain.Task) (domain.Task, bool, error) {
		next := current.Clone()
		next.SnoozedUntil = domain.FormatTimestamp(until, s.Location)
		return next, true, nil
	})
}

type mutation func(current domain.Task) (next domain.Task, changed bool, err error)

// mutate runs fn against the stored task and writes the result with a
// compare-and-swap on version, bumping version and updatedAt exactly once.
func (uc *UseCase) mutate(ctx context.Context, id string, expectedVersion *int, fn mutation) (*domain.Task, error) {
	s := uc.scheduling()
	log := appLogger.WithTraceID(ctx, uc.logger)

	for attempt := 1; ; attempt++ {
		handle, current, err := uc.tasks.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if expectedVersion != nil && *expectedVersion != current.Version {
			return nil, domain.VersionConflict(*expectedVersion, current.Version)
		}

		next, changed, err := fn(*current)
		if err != nil {
			return nil, err
		}
		if !changed {
			return current, nil
		}
		next.Version = current.Version
		next.Touch(uc.clock.Now(), s.Location)

		err = uc.tasks.Update(ctx, handle, &next, current.Version)
		if err == nil {
			log.Info("task updated", zap.String("task_id", id), zap.Int("version", next.Version))
			return &next, nil
		}
		if !errors.Is(err, domain.ErrStaleWrite) {
			return nil, err
		}
		if expectedVersion != nil || attempt >= maxWriteAttempts {
			latest := current.Version
			if _, fresh, ferr := uc.tasks.FindByID(ctx, id); ferr == nil {
				latest = fresh.Version
			}
			want := current.Version
			if expectedVersion != nil {
				want = *expectedVersion
			}
			return nil, domain.VersionConflict(want, latest)
		}
		log.Debug("retrying task write after concurrent update", zap.String("task_id", id), zap.Int("attempt", attempt))
	}
}

// ParseInstant reads an override instant for read-only queries. Values
// without an offset are taken in the configured timezone.
func (uc *UseCase) ParseInstant(field, raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	at, ok := domain.ParseTimestamp(raw, uc.scheduling().Location)
	if !ok {
		return nil, domain.ValidationError(field, fmt.Sprintf("%s must be an ISO-8601 datetime", field), map[string]any{"value": raw})
	}
	return &at, nil
}

// NextTask recommends what to work on at now, or at the clock instant when now
// is nil. Stamping the chosen task is best effort and never fails the call.
func (uc *UseCase) NextTask(ctx context.Context, now *time.Time) (recommend.Result, error) {
	s := uc.scheduling()
	at := uc.clock.Now()
	if now != nil {
		at = *now
	}

	tasks, err := uc.tasks.ReadAll(ctx)
	if err != nil {
		return recommend.Result{}, err
	}
	result := recommend.Select(tasks, at, recommend.Options{
		Location:   s.Location,
		Boundaries: s.Boundaries,
		Cooldown:   s.Cooldown,
	})
	if result.Stamp == nil {
		return result, nil
	}

	stamped, err := ApplyStamp(ctx, uc.tasks, *result.Stamp, s.Location, uc.clock.Now())
	if err != nil {
		uc.deferStamp(ctx, *result.Stamp, err)
		return result, nil
	}
	result.Best.Task = *stamped
	return result, nil
}

func (uc *UseCase) deferStamp(ctx context.Context, intent domain.StampIntent, cause error) {
	log := appLogger.WithTraceID(ctx, uc.logger).With(zap.String("task_id", intent.TaskID))
	log.Warn("failed to record last suggested time", zap.Error(cause))
	if uc.buffer == nil {
		return
	}
	if err := uc.buffer.BufferStamp(ctx, intent); err != nil {
		log.Error("failed to buffer last suggested stamp", zap.Error(err))
	}
}

// ApplyStamp sets a task's lastSuggestedAt to the suggestion instant and
// bumps updatedAt and version.
func ApplyStamp(ctx context.Context, tasks repository.TaskRepository, intent domain.StampIntent, loc *time.Location, now time.Time) (*domain.Task, error) {
	handle, current, err := tasks.FindByID(ctx, intent.TaskID)
	if err != nil {
		return nil, err
	}
	next := current.Clone()
	next.LastSuggestedAt = domain.FormatTimestamp(intent.SuggestedAt, loc)
	next.Touch(now, loc)
	if err := tasks.Update(ctx, handle, &next, current.Version); err != nil {
		return nil, err
	}
	return &next, nil
}
