package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"seat-checkin-backend/internal/model"
	"seat-checkin-backend/internal/reconcile"
)

type postScanRequest struct {
	Code   string `json:"code" binding:"required"`
	Method string `json:"method" binding:"omitempty,oneof=card other"`
}

// PostScan registers a scanned credential.
func (h *Handler) PostScan(c *gin.Context) {
	var req postScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := h.writeContext(c)
	defer cancel()

	res, err := h.svc.Engine().RegisterScan(ctx, req.Code, model.ScanMethod(req.Method))
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusCreated
	if res.Repeat {
		status = http.StatusOK
	}
	c.JSON(status, res)
}

// DeleteScan removes the check-in of one credential.
func (h *Handler) DeleteScan(c *gin.Context) {
	ctx, cancel := h.writeContext(c)
	defer cancel()

	if err := h.svc.Engine().UnregisterScan(ctx, c.Param("code")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteScans clears every check-in and reports how many deletions failed.
func (h *Handler) DeleteScans(c *gin.Context) {
	tally, err := h.svc.Engine().ClearAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	if err := tally.Err(); err != nil {
		c.JSON(http.StatusOK, gin.H{
			"succeeded": tally.Succeeded,
			"failed":    tally.Failed,
			"error":     err.Error(),
			"kind":      reconcile.ErrorKind(err),
		})
		return
	}
	c.JSON(http.StatusOK, tally)
}
