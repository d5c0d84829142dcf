package reconcile

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultGrace is how long a self-scan marker stays set when none is configured.
const DefaultGrace = 2 * time.Second

// PendingScans holds a marker per attendee for writes this process just made.
// Markers expire after the grace window.
type PendingScans struct {
	markers *cache.Cache
}

// NewPendingScans creates a marker set whose entries live for grace.
func NewPendingScans(grace time.Duration) *PendingScans {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &PendingScans{markers: cache.New(grace, grace)}
}

// Mark sets the marker for attendeeID, restarting its grace window.
func (p *PendingScans) Mark(attendeeID string) {
	p.markers.Set(attendeeID, time.Now(), cache.DefaultExpiration)
}

// Clear removes the marker for attendeeID.
func (p *PendingScans) Clear(attendeeID string) {
	p.markers.Delete(attendeeID)
}

// IsPending reports whether attendeeID has an unexpired marker.
func (p *PendingScans) IsPending(attendeeID string) bool {
	_, ok := p.markers.Get(attendeeID)
	return ok
}

