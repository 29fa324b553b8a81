package transport

import (
	"encoding/json"
	"errors"

	"github.com/fastygo/taskpilot/domain"
)

var errNotObject = errors.New("stored response is not a JSON object")

// TraceKey is the envelope key holding the trace identifier.
const TraceKey = "traceId"

// ErrorBody is the error member of a failed response.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

// Envelope is the standard API response wrapper. Resource members sit at the
// top level next to ok and traceId; keys are serialized in sorted order so a
// replayed body is byte-identical to the original apart from traceId.
type Envelope struct {
	OK      bool
	TraceID string
	Error   *ErrorBody
	Data    map[string]interface{}
}

// NewSuccess returns a success envelope carrying the given resource members.
func NewSuccess(traceID string, data map[string]interface{}) Envelope {
	return Envelope{
		OK:      true,
		TraceID: traceID,
		Data:    data,
	}
}

// NewError returns an error envelope.
func NewError(traceID string, code domain.ErrorCode, message string, details map[string]any) Envelope {
	if details == nil {
		details = map[string]any{}
	}
	return Envelope{
		TraceID: traceID,
		Error:   &ErrorBody{Code: string(code), Message: message, Details: details},
	}
}

// FromError converts any error into an error envelope.
func FromError(traceID string, err error) Envelope {
	dErr := domain.AsError(err)
	message := dErr.Message
	if dErr.Code != domain.ErrCodeInternal {
		message = dErr.Error()
	}
	return NewError(traceID, dErr.Code, message, dErr.Details)
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(e.Data)+3)
	for k, v := range e.Data {
		out[k] = v
	}
	out["ok"] = e.OK
	out[TraceKey] = e.TraceID
	if e.Error != nil {
		out["error"] = e.Error
	}
	return json.Marshal(out)
}

// String returns the JSON representation (best-effort) for logging purposes.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}

// WithTraceID rewrites the traceId member of a serialized envelope, leaving
// every other member byte-for-byte as stored.
func WithTraceID(body []byte, traceID string) ([]byte, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(body, &members); err != nil {
		return nil, err
	}
	if members == nil {
		return nil, errNotObject
	}
	encoded, err := json.Marshal(traceID)
	if err != nil {
		return nil, err
	}
	members[TraceKey] = encoded
	return json.Marshal(members)
}
