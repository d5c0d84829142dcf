package api

import (
	"context"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"seat-checkin-backend/internal/reconcile"
	"seat-checkin-backend/internal/station"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	svc     *station.Service
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(svc *station.Service) *Handler {
	return &Handler{
		svc:     svc,
		webpush: svc.WebPushOptions(),
	}
}

// writeContext bounds store calls made on behalf of a request.
func (h *Handler) writeContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.svc.Config().CheckIn.WriteTimeout)
}

// writeError maps engine errors to HTTP statuses.
func writeError(c *gin.Context, err error) {
	kind := reconcile.ErrorKind(err)
	status := http.StatusInternalServerError
	switch kind {
	case "not_found":
		status = http.StatusNotFound
	case "missing_identity":
		status = http.StatusUnprocessableEntity
	case "remote_unavailable":
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": kind})
}
