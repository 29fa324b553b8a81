package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskpilot/api/transport"
	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/internal/idempotency"
	"github.com/fastygo/taskpilot/pkg/httpcontext"
	taskUC "github.com/fastygo/taskpilot/usecase/task"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	IfMatchHeader        = "If-Match"
)

// Body members consumed by the transport layer and never passed to the use case.
var reservedBodyKeys = []string{"idempotencyKey", "requestId", "_method"}

type TaskHandler struct {
	baseHandler
	uc   *taskUC.UseCase
	gate *idempotency.Gate
}

func NewTaskHandler(uc *taskUC.UseCase, gate *idempotency.Gate, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
		gate:        gate,
	}
}

// @Summary List tasks
// @Tags tasks
// @Router /tasks [get]
func (h *TaskHandler) List(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	limit, _ := strconv.Atoi(string(args.Peek("limit")))
	filter := taskUC.Filter{
		Status: string(args.Peek("status")),
		Query:  string(args.Peek("q")),
		Limit:  limit,
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tasks, err := h.uc.ListTasks(stdCtx, filter)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]interface{}{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// @Summary Get task
// @Tags tasks
// @Router /tasks/{id} [get]
func (h *TaskHandler) Get(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.GetTask(stdCtx, taskID(ctx))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]interface{}{"task": task})
}

// @Summary Recommend the next task
// @Tags tasks
// @Router /tasks/next [get]
func (h *TaskHandler) Next(ctx *fasthttp.RequestCtx) {
	now, err := h.uc.ParseInstant("now", string(ctx.QueryArgs().Peek("now")))
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.uc.NextTask(stdCtx, now)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]interface{}{
		"now":          domain.FormatTimestamp(result.Now, result.Now.Location()),
		"context":      result.Context,
		"best":         result.Best,
		"alternatives": result.Alternatives,
		"considered":   result.Considered,
		"eligible":     result.Eligible,
	})
}

// @Summary Create task
// @Tags tasks
// @Router /tasks [post]
func (h *TaskHandler) Create(ctx *fasthttp.RequestCtx) {
	h.mutate(ctx, func(c context.Context, body map[string]json.RawMessage) (int, map[string]interface{}, error) {
		fields, err := taskUC.DecodeCreate(body)
		if err != nil {
			return 0, nil, err
		}
		task, err := h.uc.CreateTask(c, fields)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, map[string]interface{}{"task": task}, nil
	})
}

// @Summary Patch task
// @Tags tasks
// @Router /tasks/{id} [patch]
func (h *TaskHandler) Patch(ctx *fasthttp.RequestCtx) {
	id := taskID(ctx)
	ifMatch := string(ctx.Request.Header.Peek(IfMatchHeader))
	h.mutate(ctx, func(c context.Context, body map[string]json.RawMessage) (int, map[string]interface{}, error) {
		fields, err := taskUC.DecodePatch(body)
		if err != nil {
			return 0, nil, err
		}
		expected, err := parseIfMatch(ifMatch)
		if err != nil {
			return 0, nil, err
		}
		task, err := h.uc.PatchTask(c, id, fields, expected)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, map[string]interface{}{"task": task}, nil
	})
}

// @Summary Complete task
// @Tags tasks
// @Router /tasks/{id}/complete [post]
func (h *TaskHandler) Complete(ctx *fasthttp.RequestCtx) {
	id := taskID(ctx)
	h.mutate(ctx, func(c context.Context, _ map[string]json.RawMessage) (int, map[string]interface{}, error) {
		task, err := h.uc.CompleteTask(c, id)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, map[string]interface{}{"task": task}, nil
	})
}

// @Summary Snooze task
// @Tags tasks
// @Router /tasks/{id}/snooze [post]
func (h *TaskHandler) Snooze(ctx *fasthttp.RequestCtx) {
	id := taskID(ctx)
	h.mutate(ctx, func(c context.Context, body map[string]json.RawMessage) (int, map[string]interface{}, error) {
		in, err := taskUC.DecodeSnooze(body)
		if err != nil {
			return 0, nil, err
		}
		task, err := h.uc.SnoozeTask(c, id, in)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, map[string]interface{}{"task": task}, nil
	})
}

type mutation func(ctx context.Context, body map[string]json.RawMessage) (int, map[string]interface{}, error)

// mutate runs fn behind the idempotency gate. Success and failure envelopes
// are both recorded, so a retry sees exactly what the first attempt saw.
func (h *TaskHandler) mutate(ctx *fasthttp.RequestCtx, fn mutation) {
	traceID := httpcontext.TraceID(ctx)
	raw := append([]byte(nil), ctx.PostBody()...)

	body, err := decodeBody(raw)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	key := idempotencyKey(ctx, body)
	for _, k := range reservedBodyKeys {
		delete(body, k)
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	req := idempotency.Request{
		Key:     key,
		Method:  string(ctx.Method()),
		Path:    string(ctx.Path()),
		Body:    raw,
		TraceID: traceID,
	}
	resp, err := h.gate.Execute(stdCtx, req, func(c context.Context) idempotency.Response {
		status, data, err := fn(c, body)
		if err != nil {
			status, out := h.renderError(traceID, err)
			return idempotency.Response{Status: status, Body: out}
		}
		return idempotency.Response{Status: status, Body: h.render(transport.NewSuccess(traceID, data))}
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.writeBody(ctx, resp.Status, resp.Body)
}

func decodeBody(raw []byte) (map[string]json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil || body == nil {
		return nil, domain.ValidationError("body", "request body must be a JSON object", nil)
	}
	return body, nil
}

// idempotencyKey prefers the header and falls back to the body members.
func idempotencyKey(ctx *fasthttp.RequestCtx, body map[string]json.RawMessage) string {
	if key := strings.TrimSpace(string(ctx.Request.Header.Peek(IdempotencyKeyHeader))); key != "" {
		return key
	}
	for _, name := range []string{"idempotencyKey", "requestId"} {
		raw, ok := body[name]
		if !ok {
			continue
		}
		var key string
		if err := json.Unmarshal(raw, &key); err == nil && strings.TrimSpace(key) != "" {
			return strings.TrimSpace(key)
		}
	}
	return ""
}

// parseIfMatch accepts 3, "3" and W/"3". An absent header or * means
// unconditioned. Any integer is passed on so a mismatch reports the current version.
func parseIfMatch(value string) (*int, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "*" {
		return nil, nil
	}
	trimmed := strings.TrimSpace(strings.Trim(strings.TrimPrefix(value, "W/"), `"`))
	version, err := strconv.Atoi(trimmed)
	if err != nil {
		return nil, domain.ValidationError("If-Match", "If-Match must be a task version", map[string]any{"value": value})
	}
	return &version, nil
}

func taskID(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue("id").(string)
	return strings.TrimSpace(id)
}
