package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/omchandarana/geogate/internal/apperr"
	"github.com/omchandarana/geogate/internal/geoip"
	"github.com/omchandarana/geogate/internal/http/respond"
)

type GeoLookup interface {
	Lookup(ctx context.Context, ip string) (*geoip.Location, error)
}

type IPInfoHandler struct {
	geo     GeoLookup
	em      *respond.ErrorMapper
	observe func(fn func() error) error
}

// observe wraps the upstream call for metrics; pass nil to skip recording.
func NewIPInfoHandler(geo GeoLookup, em *respond.ErrorMapper, observe func(fn func() error) error) *IPInfoHandler {
	if observe == nil {
		observe = func(fn func() error) error { return fn() }
	}

	return &IPInfoHandler{
		geo:     geo,
		em:      em,
		observe: observe,
	}
}

type IPLookupQuery struct {
	IP string `form:"ip" binding:"omitempty,ipv4_loose"`
}

// Lookup proxies the third-party geolocation provider. Without an ip query
// param it resolves the caller's own address.
func (h *IPInfoHandler) Lookup(ctx *gin.Context) {
	var q IPLookupQuery

	if !h.em.BindQuery(ctx, &q) {
		return
	}

	ip := q.IP

	if ip == "" {
		ip = ctx.ClientIP()
	}

	var loc *geoip.Location

	err := h.observe(func() error {
		var lookupErr error
		loc, lookupErr = h.geo.Lookup(ctx.Request.Context(), ip)
		return lookupErr
	})

	if err != nil {
		switch {
		case errors.Is(err, geoip.ErrTimeout):
			h.em.Fail(ctx, apperr.Wrap(apperr.KindUpstreamTimeout, "Geolocation provider timed out", err))
		case errors.Is(err, geoip.ErrUnavailable):
			h.em.Fail(ctx, apperr.Wrap(apperr.KindUpstreamUnavailable, "Geolocation provider unavailable", err))
		default:
			h.em.Fail(ctx, apperr.Wrap(apperr.KindInternal, "Something went wrong", err))
		}
		return
	}

	if loc.Status != "success" {
		message := loc.Message

		if message == "" {
			message = "Lookup failed"
		}

		h.em.Fail(ctx, apperr.New(apperr.KindValidation, message))
		return
	}

	respond.OK(ctx, http.StatusOK, gin.H{
		"data": loc,
	})
}
