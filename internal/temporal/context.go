// Package temporal turns an instant into the weekday and day-part used to
// decide whether context-restricted tasks are currently actionable.
package temporal

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/fastygo/taskpilot/domain"
)

const (
	DefaultMorningStart = "05:00"
	DefaultMorningEnd   = "11:59"
	DefaultAfternoonEnd = "17:59"
	DefaultEveningEnd   = "23:59"
)

// Boundaries are the configured day-part edges, each normalized to HH:mm.
type Boundaries struct {
	MorningStart string `json:"morningStart"`
	MorningEnd   string `json:"morningEnd"`
	AfternoonEnd string `json:"afternoonEnd"`
	EveningEnd   string `json:"eveningEnd"`
}

// DefaultBoundaries returns the documented defaults.
func DefaultBoundaries() Boundaries {
	return Boundaries{
		MorningStart: DefaultMorningStart,
		MorningEnd:   DefaultMorningEnd,
		AfternoonEnd: DefaultAfternoonEnd,
		EveningEnd:   DefaultEveningEnd,
	}
}

// NewBoundaries normalizes raw boundary values of any supported representation.
func NewBoundaries(morningStart, morningEnd, afternoonEnd, eveningEnd any) Boundaries {
	return Boundaries{
		MorningStart: NormalizeHM(morningStart, DefaultMorningStart),
		MorningEnd:   NormalizeHM(morningEnd, DefaultMorningEnd),
		AfternoonEnd: NormalizeHM(afternoonEnd, DefaultAfternoonEnd),
		EveningEnd:   NormalizeHM(eveningEnd, DefaultEveningEnd),
	}
}

// Context is the temporal view of an instant used by eligibility and scoring.
type Context struct {
	WeekdayShort string            `json:"weekdayShort"`
	TimeBucket   domain.TimeBucket `json:"timeBucket"`
	HM           string            `json:"hm"`
	Boundaries
}

// Resolve computes the weekday code and time bucket of now in loc.
func Resolve(now time.Time, loc *time.Location, b Boundaries) Context {
	if loc == nil {
		loc = time.UTC
	}
	b = b.normalized()
	local := now.In(loc)
	hm := local.Format("15:04")
	return Context{
		WeekdayShort: local.Format("Mon"),
		TimeBucket:   bucketFor(hm, b),
		HM:           hm,
		Boundaries:   b,
	}
}

// HH:mm strings are zero padded, so lexical order is clock order.
func bucketFor(hm string, b Boundaries) domain.TimeBucket {
	switch {
	case hm >= b.MorningStart && hm <= b.MorningEnd:
		return domain.BucketMorning
	case hm > b.MorningEnd && hm <= b.AfternoonEnd:
		return domain.BucketAfternoon
	case hm > b.AfternoonEnd && hm <= b.EveningEnd:
		return domain.BucketEvening
	default:
		return domain.BucketNight
	}
}

func (b Boundaries) normalized() Boundaries {
	return NewBoundaries(b.MorningStart, b.MorningEnd, b.AfternoonEnd, b.EveningEnd)
}

// NormalizeHM converts a boundary given as a clock string, a time of day, a
// duration since midnight or a fractional day into 24-hour HH:mm. Out-of-range
// components are clamped; unusable input yields fallback.
func NormalizeHM(value any, fallback string) string {
	switch v := value.(type) {
	case nil:
		return fallback
	case string:
		return normalizeString(v, fallback)
	case time.Time:
		if v.IsZero() {
			return fallback
		}
		return formatHM(v.Hour(), v.Minute())
	case time.Duration:
		mins := int(v / time.Minute)
		return formatHM(mins/60, mins%60)
	case float64:
		return fromFraction(v, fallback)
	case float32:
		return fromFraction(float64(v), fallback)
	case int:
		return fromFraction(float64(v), fallback)
	default:
		return fallback
	}
}

func normalizeString(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	if !strings.Contains(raw, ":") {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return fromFraction(f, fallback)
		}
		return fallback
	}
	parts := strings.Split(raw, ":")
	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return fallback
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return fallback
	}
	return formatHM(h, m)
}

// fromFraction reads spreadsheet-style day fractions; the integer part is a date and ignored.
func fromFraction(f float64, fallback string) string {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return fallback
	}
	frac := f - math.Floor(f)
	mins := int(math.Round(frac * 24 * 60))
	if mins >= 24*60 {
		mins = 24*60 - 1
	}
	return formatHM(mins/60, mins%60)
}

func formatHM(h, m int) string {
	return fmt.Sprintf("%02d:%02d", clamp(h, 0, 23), clamp(m, 0, 59))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Settings is the scheduling configuration resolved once per request.
type Settings struct {
	Location   *time.Location
	Cooldown   time.Duration
	Boundaries Boundaries
}

// DefaultSettings is UTC, a 120 minute cooldown and the default boundaries.
func DefaultSettings() Settings {
	return Settings{
		Location:   time.UTC,
		Cooldown:   120 * time.Minute,
		Boundaries: DefaultBoundaries(),
	}
}
