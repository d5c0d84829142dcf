package notification

import (
	"sort"
	"time"

	"github.com/patrickmn/go-cache"

	"seat-checkin-backend/internal/model"
)

// Board holds the notifications operators currently see. Entries expire on
// their own after the display duration.
type Board struct {
	items *cache.Cache
}

// NewBoard creates a board whose notifications live for ttl.
func NewBoard(ttl time.Duration) *Board {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Board{items: cache.New(ttl, ttl)}
}

// Post adds n to the board.
func (b *Board) Post(n model.Notification) {
	b.items.Set(n.ID, n, cache.DefaultExpiration)
}

// Dismiss removes a notification before it expires.
func (b *Board) Dismiss(id string) {
	b.items.Delete(id)
}

// Active returns unexpired notifications, newest first.
func (b *Board) Active() []model.Notification {
	items := b.items.Items()
	out := make([]model.Notification, 0, len(items))
	for _, item := range items {
		if n, ok := item.Object.(model.Notification); ok {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RaisedAt.Equal(out[j].RaisedAt) {
			return out[i].RaisedAt.After(out[j].RaisedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Flush clears the board.
func (b *Board) Flush() {
	b.items.Flush()
}
