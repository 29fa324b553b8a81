package middleware

import (
	"encoding/json"
	"fmt"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskpilot/api/transport"
	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/pkg/httpcontext"
)

// Recover turns a panicking handler into an INTERNAL_ERROR envelope.
func Recover(logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				traceID := httpcontext.TraceID(ctx)
				logger.Error("handler panic",
					zap.String("trace_id", traceID),
					zap.String("path", string(ctx.Path())),
					zap.String("panic", fmt.Sprint(rec)),
					zap.Stack("stack"),
				)
				body, _ := json.Marshal(transport.NewError(traceID, domain.ErrCodeInternal, "internal error", nil))
				ctx.Response.Reset()
				ctx.Response.Header.Set(httpcontext.TraceHeader, traceID)
				ctx.Response.Header.SetContentType("application/json")
				ctx.SetStatusCode(fasthttp.StatusInternalServerError)
				ctx.SetBody(body)
			}()
			next(ctx)
		}
	}
}
