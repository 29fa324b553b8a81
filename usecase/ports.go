package usecase

import (
	"context"
	"time"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/internal/temporal"
)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SettingsProvider resolves the scheduling settings for one request.
type SettingsProvider interface {
	Scheduling() temporal.Settings
}

// StampBuffer keeps "last suggested" stamps that could not be written
// immediately so they can be retried later.
type StampBuffer interface {
	BufferStamp(ctx context.Context, intent domain.StampIntent) error
}
