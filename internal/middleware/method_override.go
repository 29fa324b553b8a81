package middleware

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/valyala/fasthttp"
)

const MethodOverrideHeader = "X-HTTP-Method-Override"

// MethodOverride lets clients that can only POST reach PATCH routes, via the
// X-HTTP-Method-Override header, a _method query argument, or a _method
// member of a JSON body. Only PATCH may be requested.
func MethodOverride(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if ctx.IsPost() {
			if method := overrideMethod(ctx); method == fasthttp.MethodPatch {
				ctx.Request.Header.SetMethod(method)
			}
		}
		next(ctx)
	}
}

func overrideMethod(ctx *fasthttp.RequestCtx) string {
	if m := ctx.Request.Header.Peek(MethodOverrideHeader); len(m) > 0 {
		return strings.ToUpper(strings.TrimSpace(string(m)))
	}
	if m := ctx.QueryArgs().Peek("_method"); len(m) > 0 {
		return strings.ToUpper(strings.TrimSpace(string(m)))
	}
	body := ctx.PostBody()
	if !bytes.Contains(body, []byte(`"_method"`)) {
		return ""
	}
	var probe struct {
		Method string `json:"_method"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(probe.Method))
}
