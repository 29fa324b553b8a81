package router

import (
	"encoding/json"
	"fmt"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskpilot/api/handler"
	"github.com/fastygo/taskpilot/api/transport"
	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/internal/middleware"
	"github.com/fastygo/taskpilot/pkg/httpcontext"
)

type Handlers struct {
	Task      *apiHandler.TaskHandler
	Analytics *apiHandler.AnalyticsHandler
	Health    *apiHandler.HealthHandler
}

func New(handlers Handlers) *router.Router {
	r := router.New()
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	r.GET("/health", handlers.Health.Check)

	r.GET("/tasks", handlers.Task.List)
	r.POST("/tasks", handlers.Task.Create)
	r.GET("/tasks/next", handlers.Task.Next)
	r.GET("/tasks/{id}", handlers.Task.Get)
	r.PATCH("/tasks/{id}", handlers.Task.Patch)
	r.POST("/tasks/{id}/complete", handlers.Task.Complete)
	r.POST("/tasks/{id}/snooze", handlers.Task.Snooze)

	r.GET("/analytics/summary", handlers.Analytics.Summary)

	r.NotFound = func(ctx *fasthttp.RequestCtx) {
		writeError(ctx, fasthttp.StatusNotFound, domain.ErrCodeNotFound, fmt.Sprintf("no route for %s", ctx.Path()))
	}
	r.MethodNotAllowed = func(ctx *fasthttp.RequestCtx) {
		writeError(ctx, fasthttp.StatusMethodNotAllowed, domain.ErrCodeValidation, fmt.Sprintf("method %s not allowed on %s", ctx.Method(), ctx.Path()))
	}
	return r
}

// Handler wraps the route table with the request-format middleware. Method
// override has to run before routing.
func Handler(r *router.Router, logger *zap.Logger) fasthttp.RequestHandler {
	return middleware.Chain(r.Handler,
		middleware.Recover(logger),
		middleware.AccessLog(logger),
		middleware.MethodOverride,
	)
}

func writeError(ctx *fasthttp.RequestCtx, status int, code domain.ErrorCode, message string) {
	body, _ := json.Marshal(transport.NewError(httpcontext.TraceID(ctx), code, message, nil))
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}
