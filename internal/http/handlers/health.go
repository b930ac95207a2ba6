package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/omchandarana/geogate/internal/apperr"
	"github.com/omchandarana/geogate/internal/http/respond"
)

type HealthHandler struct {
	ping func() error
	em   *respond.ErrorMapper
}

func NewHealthHandler(ping func() error, em *respond.ErrorMapper) *HealthHandler {
	return &HealthHandler{ping: ping, em: em}
}

func (h *HealthHandler) Health(ctx *gin.Context) {
	respond.OK(ctx, http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports readiness, including a database ping when one is wired.
func (h *HealthHandler) Ready(ctx *gin.Context) {
	if h.ping != nil {
		if err := h.ping(); err != nil {
			h.em.Fail(ctx, apperr.Wrap(apperr.KindStoreUnavailable, "Database unreachable", err))
			return
		}
	}

	respond.OK(ctx, http.StatusOK, gin.H{"status": "ready"})
}
