package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskpilot/pkg/httpcontext"
	taskUC "github.com/fastygo/taskpilot/usecase/task"
)

type AnalyticsHandler struct {
	baseHandler
	uc *taskUC.UseCase
}

func NewAnalyticsHandler(uc *taskUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Task summary
// @Tags analytics
// @Router /analytics/summary [get]
func (h *AnalyticsHandler) Summary(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	summary, err := h.uc.Summary(stdCtx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]interface{}{"summary": summary})
}
