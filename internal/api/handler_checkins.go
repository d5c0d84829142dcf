package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetCheckIns returns the local check-in view, newest first.
func (h *Handler) GetCheckIns(c *gin.Context) {
	sync := h.svc.Sync()
	c.JSON(http.StatusOK, gin.H{
		"phase":    sync.Phase(),
		"checkins": sync.View().Entries(),
	})
}

// GetSeats returns the seat map and its totals.
func (h *Handler) GetSeats(c *gin.Context) {
	seats, totals := h.svc.Seats()
	c.JSON(http.StatusOK, gin.H{"seats": seats, "totals": totals})
}

// GetGroups returns per-group attendance.
func (h *Handler) GetGroups(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"groups": h.svc.Groups()})
}

// GetNotifications returns the notifications currently on the board.
func (h *Handler) GetNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"notifications": h.svc.Board().Active()})
}

// Events streams view changes and notifications as server-sent events.
func (h *Handler) Events(c *gin.Context) {
	updates, cancel := h.svc.Sync().Watch()
	defer cancel()

	sync := h.svc.Sync()
	c.SSEvent("view", gin.H{"phase": sync.Phase(), "checkedIn": len(sync.View())})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case u, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent(string(u.Kind), u)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
