package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskpilot/api/transport"
	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/internal/infrastructure/monitor"
	"github.com/fastygo/taskpilot/pkg/httpcontext"
)

// StatusReporter is satisfied by *monitor.Monitor.
type StatusReporter interface {
	GetStatus() monitor.Status
	IsOnline() bool
}

// BufferSizer reports how many stamps are waiting for replay.
type BufferSizer interface {
	Size() int
}

type HealthHandler struct {
	baseHandler
	monitor StatusReporter
	buffer  BufferSizer
}

func NewHealthHandler(mon StatusReporter, buffer BufferSizer, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
		buffer:      buffer,
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	payload := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(domain.TimestampLayout),
		"services":  map[string]monitor.Component{},
	}
	online := true
	if h.monitor != nil {
		status := h.monitor.GetStatus()
		payload["services"] = status.Components
		online = h.monitor.IsOnline()
	}
	if h.buffer != nil {
		payload["bufferedStamps"] = h.buffer.Size()
	}

	if online {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	env := transport.NewError(httpcontext.TraceID(ctx), domain.ErrCodeInternal, "dependencies unavailable", payload)
	h.writeBody(ctx, http.StatusServiceUnavailable, h.render(env))
}
