package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const defaultBodyLimit = 1 << 20

// MaxBodyBytes caps request bodies. The largest legitimate payload on this
// API is a register body of a few hundred bytes, so anything near the cap
// is junk; an oversized body surfaces as a binding failure once the reader
// trips.
func MaxBodyBytes(limit int64) gin.HandlerFunc {
	if limit <= 0 {
		limit = defaultBodyLimit
	}

	return func(ctx *gin.Context) {
		if ctx.Request.Body != nil {
			ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, limit)
		}

		ctx.Next()
	}
}
