package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/fastygo/taskpilot/domain"
)

// Optional is a field that may be absent (Set false), explicitly null or
// blank (Null true), or carry a value.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns a set, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Present reports whether the field carries a value.
func (o Optional[T]) Present() bool {
	return o.Set && !o.Null
}

// Fields is the writable surface of a task shared by create and patch.
type Fields struct {
	Title        Optional[string]
	Notes        Optional[string]
	Source       Optional[string]
	Status       Optional[string]
	Priority     Optional[int]
	EffortMins   Optional[int]
	Tags         Optional[[]string]
	StartAt      Optional[string]
	DueAt        Optional[string]
	SnoozedUntil Optional[string]
	ContextDays  Optional[[]string]
	ContextTimes Optional[[]string]
}

// PatchableFields is the allow-list of keys accepted by a patch.
var PatchableFields = []string{
	"title",
	"notes",
	"status",
	"priority",
	"effortMins",
	"tags",
	"startAt",
	"dueAt",
	"snoozedUntil",
	"contextDays",
	"contextTimes",
}

// DecodeCreate reads a create payload. Keys it does not know are ignored.
func DecodeCreate(body map[string]json.RawMessage) (Fields, error) {
	f, _, err := decodeFields(body, true)
	return f, err
}

// DecodePatch reads a patch payload and rejects any key outside PatchableFields.
func DecodePatch(body map[string]json.RawMessage) (Fields, error) {
	f, unknown, err := decodeFields(body, false)
	if len(unknown) > 0 {
		return Fields{}, domain.ValidationError(unknown[0], fmt.Sprintf("unsupported patch field %q", unknown[0]), map[string]any{
			"unsupported": unknown,
			"allowed":     PatchableFields,
		})
	}
	if err != nil {
		return Fields{}, err
	}
	return f, nil
}

func decodeFields(body map[string]json.RawMessage, allowSource bool) (Fields, []string, error) {
	var (
		f       Fields
		unknown []string
		errs    []error
	)
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw := body[key]
		var err error
		switch key {
		case "title":
			f.Title, err = decodeString(raw)
		case "notes":
			f.Notes, err = decodeString(raw)
		case "status":
			f.Status, err = decodeString(raw)
		case "priority":
			f.Priority, err = decodeInt(raw)
		case "effortMins":
			f.EffortMins, err = decodeInt(raw)
		case "tags":
			f.Tags, err = decodeList(raw)
		case "startAt":
			f.StartAt, err = decodeString(raw)
		case "dueAt":
			f.DueAt, err = decodeString(raw)
		case "snoozedUntil":
			f.SnoozedUntil, err = decodeString(raw)
		case "contextDays":
			f.ContextDays, err = decodeList(raw)
		case "contextTimes":
			f.ContextTimes, err = decodeList(raw)
		case "source":
			if !allowSource {
				unknown = append(unknown, key)
				continue
			}
			f.Source, err = decodeString(raw)
		default:
			unknown = append(unknown, key)
			continue
		}
		if err != nil {
			errs = append(errs, domain.ValidationError(key, fmt.Sprintf("%s: %v", key, err), nil))
		}
	}
	if len(errs) > 0 {
		return f, unknown, errs[0]
	}
	return f, unknown, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodeString(raw json.RawMessage) (Optional[string], error) {
	if isNull(raw) {
		return Optional[string]{Set: true, Null: true}, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return Optional[string]{Set: true, Null: strings.TrimSpace(s) == "", Value: s}, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return Some(n.String()), nil
	}
	return Optional[string]{}, fmt.Errorf("expected a string")
}

// decodeInt accepts JSON numbers and numeric strings; fractional values are rejected.
func decodeInt(raw json.RawMessage) (Optional[int], error) {
	if isNull(raw) {
		return Optional[int]{Set: true, Null: true}, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		text = strings.TrimSpace(text)
		if text == "" {
			return Optional[int]{Set: true, Null: true}, nil
		}
	} else {
		text = string(bytes.TrimSpace(raw))
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Optional[int]{}, fmt.Errorf("expected an integer")
	}
	if f != math.Trunc(f) {
		return Optional[int]{}, fmt.Errorf("expected an integer, got %s", text)
	}
	return Some(int(f)), nil
}

// decodeList accepts an array of strings or a comma-joined string.
func decodeList(raw json.RawMessage) (Optional[[]string], error) {
	if isNull(raw) {
		return Optional[[]string]{Set: true, Null: true}, nil
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		var joined string
		if err := json.Unmarshal(raw, &joined); err != nil {
			return Optional[[]string]{}, fmt.Errorf("expected a list of strings")
		}
		items = domain.SplitList(joined)
	}
	items = domain.SplitList(domain.JoinList(items))
	return Optional[[]string]{Set: true, Null: len(items) == 0, Value: items}, nil
}

// DecodeSnooze reads {"until": ISO} or {"minutes": n}. until wins when both are present.
func DecodeSnooze(body map[string]json.RawMessage) (SnoozeInput, error) {
	var (
		in  SnoozeInput
		err error
	)
	if raw, ok := body["until"]; ok {
		if in.Until, err = decodeString(raw); err != nil {
			return SnoozeInput{}, domain.ValidationError("until", "until: "+err.Error(), nil)
		}
	}
	if raw, ok := body["minutes"]; ok {
		if in.Minutes, err = decodeInt(raw); err != nil {
			return SnoozeInput{}, domain.ValidationError("minutes", "minutes: "+err.Error(), nil)
		}
	}
	return in, nil
}
