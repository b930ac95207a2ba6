// Package respond is the terminal stage of the error pipeline. Controllers
// and middleware alike funnel failures through the ErrorMapper, which logs
// them and writes the uniform envelope.
package respond

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/omchandarana/geogate/internal/apperr"
)

// ErrorMapper logs every failure with its kind and request context, then
// writes the envelope. Diagnostic detail leaks into responses only outside
// prod.
type ErrorMapper struct {
	log   *slog.Logger
	debug bool
}

func NewErrorMapper(log *slog.Logger, env string) *ErrorMapper {
	return &ErrorMapper{
		log:   log,
		debug: env != "prod",
	}
}

func (m *ErrorMapper) Fail(ctx *gin.Context, err error) {
	ae := asAppError(err)

	status := ae.Kind.Status()

	m.log.Error("request failed",
		"kind", ae.Kind.String(),
		"status", status,
		"route", ctx.FullPath(),
		"method", ctx.Request.Method,
		"client", ctx.ClientIP(),
		"request_id", requestIDFrom(ctx),
		"err", ae.Error(),
	)

	body := gin.H{
		"success": false,
		"message": ae.Message,
	}

	if len(ae.Fields) > 0 {
		body["errors"] = ae.Fields
	}

	if m.debug && ae.Err != nil {
		body["detail"] = ae.Err.Error()
	}

	ctx.JSON(status, body)
}

// Abort is Fail for middleware: it writes the envelope and stops the chain
// so the controller never runs.
func (m *ErrorMapper) Abort(ctx *gin.Context, err error) {
	m.Fail(ctx, err)
	ctx.Abort()
}

func asAppError(err error) *apperr.Error {
	var ae *apperr.Error

	if errors.As(err, &ae) {
		return ae
	}

	return apperr.Wrap(apperr.KindInternal, "Something went wrong", err)
}

// OK writes a success envelope, merging payload keys in.
func OK(ctx *gin.Context, status int, payload gin.H) {
	body := gin.H{"success": true}

	for k, v := range payload {
		body[k] = v
	}

	ctx.JSON(status, body)
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get("request_id")

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}
