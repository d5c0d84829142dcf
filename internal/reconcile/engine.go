// Package reconcile turns scan events into check-in records in the shared store.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"seat-checkin-backend/internal/model"
	"seat-checkin-backend/internal/roster"
	"seat-checkin-backend/internal/store"
)

// Result describes a successful scan.
type Result struct {
	Attendee model.Attendee `json:"attendee"`
	// FirstScanAt is the reported check-in time, even on a repeat scan.
	FirstScanAt time.Time        `json:"firstScanAt"`
	LastScanAt  time.Time        `json:"lastScanAt"`
	Method      model.ScanMethod `json:"scanMethod"`
	Repeat      bool             `json:"repeat"`
}

// Tally counts the outcome of a batch delete.
type Tally struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Err returns ErrPartialBatchFailure when any record failed.
func (t Tally) Err() error {
	if t.Failed == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d of %d deletions failed", ErrPartialBatchFailure, t.Failed, t.Succeeded+t.Failed)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithStationID tags every write with the station that made it.
func WithStationID(id string) Option {
	return func(e *Engine) { e.stationID = id }
}

// WithGrace sets how long self-scan markers stay set.
func WithGrace(grace time.Duration) Option {
	return func(e *Engine) { e.pending = NewPendingScans(grace) }
}

// Engine registers and removes check-ins for the attendees of the current roster.
type Engine struct {
	store     store.Store
	pending   *PendingScans
	now       func() time.Time
	stationID string
	inflight  singleflight.Group

	mu     sync.RWMutex
	roster *roster.Roster
}

// NewEngine creates an engine writing to s. It resolves nothing until SetRoster is called.
func NewEngine(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store: s,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.pending == nil {
		e.pending = NewPendingScans(DefaultGrace)
	}
	return e
}

// SetRoster swaps the roster used to resolve credentials.
func (e *Engine) SetRoster(r *roster.Roster) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.roster = r
}

// Roster returns the roster currently used for resolution.
func (e *Engine) Roster() *roster.Roster {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.roster
}

// IsPending reports whether this process wrote a check-in for attendeeID
// within the grace window.
func (e *Engine) IsPending(attendeeID string) bool {
	return e.pending.IsPending(attendeeID)
}

// RegisterScan records a scan of code. A first scan creates the record; a
// repeat scan only moves lastScanAt forward and keeps the original check-in time.
func (e *Engine) RegisterScan(ctx context.Context, code string, method model.ScanMethod) (Result, error) {
	if method == "" {
		method = model.ScanMethodOther
	}
	if !method.Valid() {
		return Result{}, fmt.Errorf("unknown scan method %q", method)
	}
	attendee, err := e.resolve(code)
	if err != nil {
		return Result{}, err
	}

	// A double submit of the same attendee joins the write already in flight.
	v, err, _ := e.inflight.Do(attendee.ID, func() (any, error) {
		return e.register(ctx, attendee, method)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (e *Engine) register(ctx context.Context, a model.Attendee, method model.ScanMethod) (Result, error) {
	existing, found, err := e.store.Get(ctx, a.ID)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read check-in for %s: %w", ErrRemoteUnavailable, a.ID, err)
	}

	now := e.clock()
	res := Result{Attendee: a, LastScanAt: now, Method: method}
	patch := store.Patch{
		ScanMethod:  method,
		Notified:    store.Bool(true),
		DisplayName: a.DisplayName,
		GroupLabel:  a.GroupLabel,
		SeatID:      a.SeatID,
		StationID:   e.stationID,
	}

	if found && existing.CheckedIn() {
		res.Repeat = true
		res.FirstScanAt = *existing.FirstScanAt
		if existing.LastScanAt.After(now) {
			res.LastScanAt = existing.LastScanAt
		}
	} else {
		patch.FirstScanAt = store.Time(now)
		res.FirstScanAt = now
	}
	patch.LastScanAt = store.Time(res.LastScanAt)

	e.pending.Mark(a.ID)
	if err := e.store.UpsertMerge(ctx, a.ID, patch); err != nil {
		e.pending.Clear(a.ID)
		return Result{}, fmt.Errorf("%w: write check-in for %s: %w", ErrRemoteUnavailable, a.ID, err)
	}

	if !res.Repeat {
		// Another station may have won the race for the first scan.
		stored, ok, err := e.store.Get(ctx, a.ID)
		if err != nil {
			log.Printf("Could not re-read check-in for %s after first scan: %v", a.ID, err)
		} else if ok && stored.CheckedIn() && !stored.FirstScanAt.Equal(now) {
			res.FirstScanAt = *stored.FirstScanAt
			res.Repeat = true
		}
	}
	return res, nil
}

// UnregisterScan deletes the check-in for code. Deleting a record that does not
// exist succeeds.
func (e *Engine) UnregisterScan(ctx context.Context, code string) error {
	attendee, err := e.resolve(code)
	if err != nil {
		return err
	}
	if err := e.store.Delete(ctx, attendee.ID); err != nil {
		return fmt.Errorf("%w: delete check-in for %s: %w", ErrRemoteUnavailable, attendee.ID, err)
	}
	e.pending.Clear(attendee.ID)
	return nil
}

// ClearAll deletes every record in the store, continuing past individual
// failures. The error is non-nil only when the records could not be listed;
// use Tally.Err to treat partial failure as an error.
func (e *Engine) ClearAll(ctx context.Context) (Tally, error) {
	records, err := e.store.ListAll(ctx)
	if err != nil {
		return Tally{}, fmt.Errorf("%w: list check-ins: %w", ErrRemoteUnavailable, err)
	}

	var tally Tally
	for _, rec := range records {
		if err := e.store.Delete(ctx, rec.AttendeeID); err != nil {
			log.Printf("Failed to clear check-in %s: %v", rec.AttendeeID, err)
			tally.Failed++
			continue
		}
		e.pending.Clear(rec.AttendeeID)
		tally.Succeeded++
	}
	return tally, nil
}

func (e *Engine) resolve(code string) (model.Attendee, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return model.Attendee{}, fmt.Errorf("%w: empty credential", ErrNotFound)
	}
	attendee, ok := e.Roster().Match(code)
	if !ok {
		return model.Attendee{}, fmt.Errorf("%w: %q", ErrNotFound, code)
	}
	if strings.TrimSpace(attendee.ID) == "" {
		return model.Attendee{}, fmt.Errorf("%w: credential %q", ErrMissingIdentity, code)
	}
	return attendee, nil
}

// clock returns the current time in the precision the SQL stores keep.
func (e *Engine) clock() time.Time {
	return e.now().UTC().Truncate(time.Microsecond)
}

