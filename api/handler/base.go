package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskpilot/api/transport"
	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/pkg/httpcontext"
	appLogger "github.com/fastygo/taskpilot/pkg/logger"
)

type baseHandler struct {
	adapter *httpcontext.Adapter
	logger  *zap.Logger
}

func newBaseHandler(adapter *httpcontext.Adapter, logger *zap.Logger) baseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseHandler{adapter: adapter, logger: logger}
}

func (h baseHandler) requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	if h.adapter != nil {
		return h.adapter.Attach(ctx)
	}
	stdCtx, cancel := context.WithCancel(context.Background())
	return appLogger.ContextWithTraceID(stdCtx, httpcontext.TraceID(ctx)), cancel
}

func (h baseHandler) writeBody(ctx *fasthttp.RequestCtx, status int, body []byte) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}

// render serializes an envelope. Keys come out sorted, which replay relies on.
func (h baseHandler) render(env transport.Envelope) []byte {
	body, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
		body, _ = json.Marshal(transport.NewError(env.TraceID, domain.ErrCodeInternal, "internal error", nil))
	}
	return body
}

func (h baseHandler) renderError(traceID string, err error) (int, []byte) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("trace_id", traceID), zap.Error(err))
	}
	return status, h.render(transport.FromError(traceID, err))
}

func (h baseHandler) respondSuccess(ctx *fasthttp.RequestCtx, status int, data map[string]interface{}) {
	h.writeBody(ctx, status, h.render(transport.NewSuccess(httpcontext.TraceID(ctx), data)))
}

func (h baseHandler) respondError(ctx *fasthttp.RequestCtx, err error) {
	status, body := h.renderError(httpcontext.TraceID(ctx), err)
	h.writeBody(ctx, status, body)
}

func statusFor(err error) int {
	switch domain.AsError(err).Code {
	case domain.ErrCodeValidation, domain.ErrCodeMissingIdempotency:
		return http.StatusBadRequest
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeVersionConflict, domain.ErrCodeKeyReused, domain.ErrCodeInProgress:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
