package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/internal/temporal"
	"github.com/fastygo/taskpilot/repository"
	"github.com/fastygo/taskpilot/repository/memory"
	"github.com/fastygo/taskpilot/usecase"
)

// Wednesday 09:00 UTC.
var fixedNow = time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)

type staticSettings temporal.Settings

func (s staticSettings) Scheduling() temporal.Settings { return temporal.Settings(s) }

type recordingBuffer struct {
	mu      sync.Mutex
	intents []domain.StampIntent
}

func (b *recordingBuffer) BufferStamp(_ context.Context, intent domain.StampIntent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.intents = append(b.intents, intent)
	return nil
}

func newUseCase(repo repository.TaskRepository, buffer usecase.StampBuffer) *UseCase {
	clock := usecase.ClockFunc(func() time.Time { return fixedNow })
	return New(repo, staticSettings(temporal.DefaultSettings()), clock, buffer, nil)
}

func create(t *testing.T, uc *UseCase, raw string) *domain.Task {
	t.Helper()
	f, err := DecodeCreate(body(t, raw))
	require.NoError(t, err)
	created, err := uc.CreateTask(context.Background(), f)
	require.NoError(t, err)
	return created
}

func TestCreateTaskDefaults(t *testing.T) {
	uc := newUseCase(memory.NewTaskRepository(), nil)

	created := create(t, uc, `{"title":" Draft ","tags":["x","y"],"source":"email"}`)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Draft", created.Title)
	assert.Equal(t, domain.StatusActive, created.Status)
	assert.Equal(t, domain.DefaultPriority, created.Priority)
	assert.Equal(t, "x,y", created.Tags)
	assert.Equal(t, "email", created.Source)
	assert.Equal(t, 1, created.Version)
	assert.Equal(t, "2025-03-12T09:00:00Z", created.CreatedAt)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	stored, err := uc.GetTask(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, *created, *stored)
}

func TestCreateAndPatchNormalizeAlike(t *testing.T) {
	ctx := context.Background()
	uc := newUseCase(memory.NewTaskRepository(), nil)
	const fields = `{
		"title": " Title ",
		"startAt": "2025-03-12T10:00",
		"dueAt": "2025-03-13T18:00:00+02:00",
		"contextTimes": ["evening"],
		"contextDays": ["mon", "FRI"],
		"tags": "b, a",
		"priority": "4",
		"effortMins": 30
	}`

	created := create(t, uc, fields)
	readBack, err := uc.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Title", readBack.Title)
	assert.Equal(t, "2025-03-12T10:00:00Z", readBack.StartAt)
	assert.Equal(t, "2025-03-13T16:00:00Z", readBack.DueAt)
	assert.Equal(t, "EVENING", readBack.ContextTimes)
	assert.Equal(t, "Mon,Fri", readBack.ContextDays)

	other := create(t, uc, `{"title":"placeholder"}`)
	f, err := DecodePatch(body(t, fields))
	require.NoError(t, err)
	patched, err := uc.PatchTask(ctx, other.ID, f, nil)
	require.NoError(t, err)

	normalized := func(task domain.Task) domain.Task {
		task.ID, task.CreatedAt, task.UpdatedAt, task.Version = "", "", "", 0
		return task
	}
	if diff := cmp.Diff(normalized(*readBack), normalized(*patched)); diff != "" {
		t.Fatalf("create and patch normalized differently (-created +patched):\n%s", diff)
	}
	if diff := cmp.Diff(normalized(*readBack), normalized(ApplyPatch(*other, f, time.UTC))); diff != "" {
		t.Fatalf("ApplyPatch disagrees with create (-created +applied):\n%s", diff)
	}
}

func TestCreateTaskInvalidWritesNothing(t *testing.T) {
	repo := memory.NewTaskRepository()
	uc := newUseCase(repo, nil)

	f, err := DecodeCreate(body(t, `{"title":"x","priority":9}`))
	require.NoError(t, err)
	_, err = uc.CreateTask(context.Background(), f)
	require.Error(t, err)

	all, err := repo.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPatchTaskBumpsVersionOnce(t *testing.T) {
	uc := newUseCase(memory.NewTaskRepository(), nil)
	created := create(t, uc, `{"title":"a"}`)

	f, err := DecodePatch(body(t, `{"priority":5,"notes":"n"}`))
	require.NoError(t, err)
	patched, err := uc.PatchTask(context.Background(), created.ID, f, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, patched.Version)
	assert.Equal(t, 5, patched.Priority)
	assert.Equal(t, "n", patched.Notes)
	assert.Equal(t, created.CreatedAt, patched.CreatedAt)
}

func TestPatchTaskExpectedVersion(t *testing.T) {
	uc := newUseCase(memory.NewTaskRepository(), nil)
	created := create(t, uc, `{"title":"a"}`)
	f, err := DecodePatch(body(t, `{"title":"b"}`))
	require.NoError(t, err)

	stale := 7
	_, err = uc.PatchTask(context.Background(), created.ID, f, &stale)
	require.Error(t, err)
	dErr := domain.AsError(err)
	assert.Equal(t, domain.ErrCodeVersionConflict, dErr.Code)
	assert.Equal(t, 7, dErr.Details["expectedVersion"])
	assert.Equal(t, 1, dErr.Details["currentVersion"])

	current := 1
	patched, err := uc.PatchTask(context.Background(), created.ID, f, &current)
	require.NoError(t, err)
	assert.Equal(t, "b", patched.Title)
	assert.Equal(t, 2, patched.Version)
}

func TestPatchTaskNotFound(t *testing.T) {
	uc := newUseCase(memory.NewTaskRepository(), nil)
	_, err := uc.PatchTask(context.Background(), "missing", Fields{Title: Some("x")}, nil)
	assert.True(t, errors.Is(err, domain.ErrTaskNotFound))
}

func TestCompleteTaskIsIdempotent(t *testing.T) {
	uc := newUseCase(memory.NewTaskRepository(), nil)
	created := create(t, uc, `{"title":"a"}`)

	done, err := uc.CompleteTask(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.Status)
	assert.Equal(t, 2, done.Version)

	again, err := uc.CompleteTask(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Version, "completing twice does not bump the version")
}

func TestSnoozeTask(t *testing.T) {
	uc := newUseCase(memory.NewTaskRepository(), nil)
	created := create(t, uc, `{"title":"a"}`)

	snoozed, err := uc.SnoozeTask(context.Background(), created.ID, SnoozeInput{Minutes: Some(90)})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-12T10:30:00Z", snoozed.SnoozedUntil)
	assert.Equal(t, 2, snoozed.Version)

	snoozed, err = uc.SnoozeTask(context.Background(), created.ID, SnoozeInput{Until: Some("2025-03-13T08:00:00+01:00")})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-13T07:00:00Z", snoozed.SnoozedUntil)

	_, err = uc.SnoozeTask(context.Background(), created.ID, SnoozeInput{Minutes: Some(0)})
	assert.Equal(t, "minutes", validationField(t, err))

	_, err = uc.SnoozeTask(context.Background(), created.ID, SnoozeInput{})
	assert.Equal(t, "until", validationField(t, err))
}

func TestListTasksFilters(t *testing.T) {
	uc := newUseCase(memory.NewTaskRepository(), nil)
	create(t, uc, `{"title":"Buy milk","tags":"home"}`)
	b := create(t, uc, `{"title":"Ship release","notes":"tag v2"}`)
	create(t, uc, `{"title":"Old","status":"COMPLETED"}`)

	active, err := uc.ListTasks(context.Background(), Filter{Status: "active"})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	found, err := uc.ListTasks(context.Background(), Filter{Query: "V2"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, b.ID, found[0].ID)

	limited, err := uc.ListTasks(context.Background(), Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = uc.ListTasks(context.Background(), Filter{Status: "DONE"})
	assert.Equal(t, "status", validationField(t, err))
}

// racingRepo lets another writer win the first Update.
type racingRepo struct {
	*memory.TaskRepository
	once sync.Once
}

func (r *racingRepo) Update(ctx context.Context, handle repository.Handle, task *domain.Task, expectedVersion int) error {
	r.once.Do(func() {
		_, current, err := r.TaskRepository.FindByID(ctx, task.ID)
		if err != nil {
			return
		}
		other := current.Clone()
		other.Notes = "concurrent"
		other.Version++
		_ = r.TaskRepository.Update(ctx, handle, &other, current.Version)
	})
	return r.TaskRepository.Update(ctx, handle, task, expectedVersion)
}

func TestMutateRetriesUnconditionedWrites(t *testing.T) {
	repo := &racingRepo{TaskRepository: memory.NewTaskRepository()}
	uc := newUseCase(repo, nil)
	created := create(t, uc, `{"title":"a"}`)

	patched, err := uc.PatchTask(context.Background(), created.ID, Fields{Priority: Some(1)}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, patched.Version)
	assert.Equal(t, 1, patched.Priority)
	assert.Equal(t, "concurrent", patched.Notes, "retry re-applies onto the latest row")
}

func TestMutateConditionedWriteDoesNotRetry(t *testing.T) {
	repo := &racingRepo{TaskRepository: memory.NewTaskRepository()}
	uc := newUseCase(repo, nil)
	created := create(t, uc, `{"title":"a"}`)

	expected := 1
	_, err := uc.PatchTask(context.Background(), created.ID, Fields{Priority: Some(1)}, &expected)
	require.Error(t, err)
	dErr := domain.AsError(err)
	assert.Equal(t, domain.ErrCodeVersionConflict, dErr.Code)
	assert.Equal(t, 2, dErr.Details["currentVersion"])
}

func TestNextTaskStampsBest(t *testing.T) {
	uc := newUseCase(memory.NewTaskRepository(), nil)
	low := create(t, uc, `{"title":"low","priority":1}`)
	high := create(t, uc, `{"title":"high","priority":5}`)

	result, err := uc.NextTask(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, result.Best)
	assert.Equal(t, high.ID, result.Best.Task.ID)
	assert.Equal(t, "2025-03-12T09:00:00Z", result.Best.Task.LastSuggestedAt)
	assert.Equal(t, 2, result.Best.Task.Version)
	require.Len(t, result.Alternatives, 1)
	assert.Equal(t, low.ID, result.Alternatives[0].TaskID)

	stored, err := uc.GetTask(context.Background(), high.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Best.Task, *stored)
}

func TestNextTaskAtExplicitInstant(t *testing.T) {
	uc := newUseCase(memory.NewTaskRepository(), nil)
	task := create(t, uc, `{"title":"later","startAt":"2025-03-12T12:00:00Z"}`)

	result, err := uc.NextTask(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, result.Best)

	at := time.Date(2025, 3, 12, 13, 0, 0, 0, time.UTC)
	result, err = uc.NextTask(context.Background(), &at)
	require.NoError(t, err)
	require.NotNil(t, result.Best)
	assert.Equal(t, task.ID, result.Best.Task.ID)
	assert.Equal(t, "2025-03-12T13:00:00Z", result.Best.Task.LastSuggestedAt)
	assert.Equal(t, "2025-03-12T09:00:00Z", result.Best.Task.UpdatedAt)
}

type readOnlyRepo struct {
	*memory.TaskRepository
}

func (readOnlyRepo) Update(context.Context, repository.Handle, *domain.Task, int) error {
	return errors.New("sheet is read-only")
}

func TestNextTaskSwallowsStampFailure(t *testing.T) {
	inner := memory.NewTaskRepository()
	seed := newUseCase(inner, nil)
	created := create(t, seed, `{"title":"a"}`)

	buffer := &recordingBuffer{}
	uc := newUseCase(readOnlyRepo{inner}, buffer)

	result, err := uc.NextTask(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, result.Best)
	assert.Equal(t, created.ID, result.Best.Task.ID)
	assert.Empty(t, result.Best.Task.LastSuggestedAt)
	assert.Equal(t, 1, result.Best.Task.Version)

	require.Len(t, buffer.intents, 1)
	assert.Equal(t, created.ID, buffer.intents[0].TaskID)
	assert.True(t, fixedNow.Equal(buffer.intents[0].SuggestedAt))
}

func TestSummary(t *testing.T) {
	uc := newUseCase(memory.NewTaskRepository(), nil)
	create(t, uc, `{"title":"overdue","dueAt":"2025-03-12T08:00:00Z"}`)
	create(t, uc, `{"title":"soon","dueAt":"2025-03-12T20:00:00Z"}`)
	create(t, uc, `{"title":"snoozed","snoozedUntil":"2025-03-12T10:00:00Z"}`)
	create(t, uc, `{"title":"later","startAt":"2025-03-20T10:00:00Z"}`)
	create(t, uc, `{"title":"done","status":"COMPLETED"}`)

	s, err := uc.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, s.Total)
	assert.Equal(t, map[string]int{"ACTIVE": 4, "COMPLETED": 1, "CANCELED": 0}, s.ByStatus)
	assert.Equal(t, ActiveSummary{
		Total:        4,
		Overdue:      1,
		DueWithin24h: 1,
		Snoozed:      1,
		NotStarted:   1,
		EligibleNow:  2,
	}, s.Active)
	assert.Equal(t, domain.BucketMorning, s.Context.TimeBucket)
}
