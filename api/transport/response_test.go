package transport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskpilot/domain"
)

func TestEnvelopeSuccessShape(t *testing.T) {
	body, err := json.Marshal(NewSuccess("tr-1", map[string]interface{}{"task": map[string]int{"version": 2}}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"traceId":"tr-1","task":{"version":2}}`, string(body))
	assert.Equal(t, `{"ok":true,"task":{"version":2},"traceId":"tr-1"}`, string(body), "keys are sorted")
}

func TestEnvelopeErrorShape(t *testing.T) {
	env := FromError("tr-2", domain.VersionConflict(1, 3))
	body, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"ok": false,
		"traceId": "tr-2",
		"error": {
			"code": "VERSION_CONFLICT",
			"message": "task was modified by another request",
			"details": {"expectedVersion": 1, "currentVersion": 3}
		}
	}`, string(body))
}

func TestFromErrorHidesInternalCause(t *testing.T) {
	env := FromError("tr", assert.AnError)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(domain.ErrCodeInternal), env.Error.Code)
	assert.Equal(t, "internal error", env.Error.Message)
}

func TestWithTraceIDOnlyTouchesTrace(t *testing.T) {
	original, err := json.Marshal(NewSuccess("old", map[string]interface{}{"task": map[string]string{"title": "a<b"}}))
	require.NoError(t, err)

	replayed, err := WithTraceID(original, "old")
	require.NoError(t, err)
	assert.Equal(t, string(original), string(replayed))

	fresh, err := WithTraceID(original, "new")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"traceId":"new","task":{"title":"a<b"}}`, string(fresh))
}

func TestWithTraceIDRejectsGarbage(t *testing.T) {
	for _, body := range []string{"", "not json", "null", "[1,2]"} {
		_, err := WithTraceID([]byte(body), "x")
		assert.Error(t, err, "body %q", body)
	}
}
