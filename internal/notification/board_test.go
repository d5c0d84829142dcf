package notification

import (
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seat-checkin-backend/internal/model"
)

func TestBoard_ActiveNewestFirst(t *testing.T) {
	b := NewBoard(time.Minute)
	at := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)

	b.Post(model.Notification{ID: "old", RaisedAt: at})
	b.Post(model.Notification{ID: "new", RaisedAt: at.Add(time.Second)})

	active := b.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "new", active[0].ID)
	assert.Equal(t, "old", active[1].ID)

	b.Dismiss("new")
	assert.Len(t, b.Active(), 1)

	b.Flush()
	assert.Empty(t, b.Active())
}

func TestBoard_Expires(t *testing.T) {
	b := NewBoard(30 * time.Millisecond)
	b.Post(model.Notification{ID: "n", RaisedAt: time.Now()})
	require.Len(t, b.Active(), 1)

	assert.Eventually(t, func() bool { return len(b.Active()) == 0 }, time.Second, 10*time.Millisecond)
}

func TestDispatcher_Notify(t *testing.T) {
	db, _ := newTestDB(t)
	pool := NewWorkerPool(1, db, &webpush.Options{})
	board := NewBoard(time.Minute)
	d := NewDispatcher(board, pool)

	d.Notify(model.Notification{AttendeeID: "NV001", CredentialCode: "CARD-001"})

	active := board.Active()
	require.Len(t, active, 1)
	assert.NotEmpty(t, active[0].ID, "an id is assigned")
	assert.False(t, active[0].RaisedAt.IsZero())

	select {
	case job := <-pool.jobs:
		assert.Equal(t, active[0].ID, job.ID)
	case <-time.After(time.Second):
		t.Fatal("push job not queued")
	}
}

func TestDispatcher_WithoutPush(t *testing.T) {
	board := NewBoard(time.Minute)
	d := NewDispatcher(board, nil)

	d.Notify(model.Notification{ID: "fixed", AttendeeID: "NV002"})
	require.Len(t, board.Active(), 1)
	assert.Equal(t, "fixed", board.Active()[0].ID)
}
