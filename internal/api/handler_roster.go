package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"seat-checkin-backend/internal/identity"
	"seat-checkin-backend/internal/model"
)

// GetRoster returns the attendees of the current roster.
func (h *Handler) GetRoster(c *gin.Context) {
	r := h.svc.Roster()
	attendees := []model.Attendee{}
	if r != nil {
		attendees = r.Attendees()
	}
	c.JSON(http.StatusOK, gin.H{
		"generation": h.svc.RosterGeneration(),
		"attendees":  attendees,
	})
}

// PutRoster replaces the roster with the posted rows. Rows may use any of the
// known column spellings.
func (h *Handler) PutRoster(c *gin.Context) {
	var raw []map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows := make([]identity.Row, len(raw))
	for i, row := range raw {
		rows[i] = identity.Row(row)
	}

	r, problems := h.svc.ImportRows(c.Request.Context(), rows)
	c.JSON(http.StatusOK, gin.H{
		"generation": h.svc.RosterGeneration(),
		"attendees":  r.Len(),
		"problems":   problemList(problems),
	})
}

// GetRosterProblems returns the validation problems of the current roster.
func (h *Handler) GetRosterProblems(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"problems": problemList(h.svc.Problems())})
}
