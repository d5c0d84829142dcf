package notification

import (
	"log"
	"time"

	"github.com/google/uuid"

	"seat-checkin-backend/internal/model"
)

// Dispatcher fans a raised notification out to the board and the push queue.
type Dispatcher struct {
	board *Board
	push  *WorkerPool
	now   func() time.Time
}

// NewDispatcher creates a dispatcher. push may be nil when web push is disabled.
func NewDispatcher(board *Board, push *WorkerPool) *Dispatcher {
	return &Dispatcher{board: board, push: push, now: time.Now}
}

// Notify posts n. It never blocks on push delivery.
func (d *Dispatcher) Notify(n model.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.RaisedAt.IsZero() {
		n.RaisedAt = d.now().UTC()
	}
	log.Printf("Check-in from another station: attendee %s (%s)", n.AttendeeID, n.CredentialCode)
	if d.board != nil {
		d.board.Post(n)
	}
	if d.push != nil {
		d.push.Dispatch(n)
	}
}
