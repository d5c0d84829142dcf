// Package liveview keeps a local view of the shared check-ins and decides which
// changes operators have to be told about.
package liveview

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"seat-checkin-backend/internal/model"
	"seat-checkin-backend/internal/roster"
	"seat-checkin-backend/internal/store"
)

// Notifier receives check-ins made elsewhere.
type Notifier interface {
	Notify(n model.Notification)
}

// PendingChecker reports attendees this process has just written itself.
type PendingChecker interface {
	IsPending(attendeeID string) bool
}

// UpdateKind tells watchers what changed.
type UpdateKind string

const (
	UpdateView         UpdateKind = "view"
	UpdateNotification UpdateKind = "notification"
	UpdateError        UpdateKind = "error"
)

// Update is sent to watchers after every applied snapshot, raised
// notification and stream error.
type Update struct {
	Kind         UpdateKind          `json:"kind"`
	Phase        Phase               `json:"phase"`
	CheckedIn    int                 `json:"checkedIn"`
	Notification *model.Notification `json:"notification,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithErrorHandler is called with stream errors of the current subscription.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Synchronizer) { s.onError = fn }
}

// WithWriteTimeout bounds the notified=true write-back.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Synchronizer) { s.writeTimeout = d }
}

// WithClock replaces the wall clock used for notification times.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

// surfaceKey identifies one check-in lifetime of one attendee.
type surfaceKey struct {
	attendeeID  string
	firstScanAt int64
}

func keyOf(rec model.CheckInRecord) surfaceKey {
	return surfaceKey{attendeeID: rec.AttendeeID, firstScanAt: rec.FirstScanAt.UnixMicro()}
}

// Synchronizer materializes the store into a View for the current roster.
// Within one roster load it moves Loading -> Live exactly once.
type Synchronizer struct {
	store        store.Store
	pending      PendingChecker
	notifier     Notifier
	onError      func(error)
	writeTimeout time.Duration
	now          func() time.Time

	mu          sync.Mutex
	generation  uint64
	phase       Phase
	join        join
	view        View
	baseline    map[surfaceKey]struct{}
	surfaced    map[surfaceKey]struct{}
	unsubscribe func()

	watchMu     sync.Mutex
	watchers    map[int]chan Update
	nextWatcher int
}

// New creates an idle synchronizer. pending and notifier may be nil.
func New(s store.Store, pending PendingChecker, notifier Notifier, opts ...Option) *Synchronizer {
	lv := &Synchronizer{
		store:        s,
		pending:      pending,
		notifier:     notifier,
		writeTimeout: 10 * time.Second,
		now:          time.Now,
		view:         View{},
		watchers:     make(map[int]chan Update),
	}
	for _, opt := range opts {
		opt(lv)
	}
	return lv
}

// OnRosterReady drops the previous subscription, loads every record once and
// then subscribes to the store. Loading ends when the bulk read is applied;
// every stream snapshot after that is classified. When the bulk read fails the
// first stream snapshot stands in for it and stays silent.
func (s *Synchronizer) OnRosterReady(ctx context.Context, r *roster.Roster) {
	if r == nil {
		s.Close()
		return
	}

	s.mu.Lock()
	s.teardownLocked()
	s.generation++
	gen := s.generation
	s.phase = PhaseLoading
	s.join = newJoin(r)
	s.view = View{}
	s.baseline = make(map[surfaceKey]struct{})
	s.surfaced = make(map[surfaceKey]struct{})
	s.mu.Unlock()
	s.broadcast(s.viewUpdate())

	records, err := s.store.ListAll(ctx)
	if err != nil {
		log.Printf("Initial check-in load failed, view stays empty until the stream delivers: %v", err)
	} else {
		s.mu.Lock()
		if s.generation == gen && s.phase == PhaseLoading {
			s.addBaselineLocked(records)
			s.view = s.join.build(records)
			s.phase = PhaseLive
		}
		s.mu.Unlock()
		s.broadcast(s.viewUpdate())
	}

	unsubscribe := s.store.Subscribe(
		func(records []model.CheckInRecord) { s.handleSnapshot(gen, records) },
		func(err error) { s.handleError(gen, err) },
	)

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		unsubscribe()
		return
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
	log.Printf("Live view attached to roster of %d attendees", r.Len())
}

// Close unsubscribes and returns to the idle state with an empty view.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	s.teardownLocked()
	s.generation++
	s.phase = PhaseIdle
	s.view = View{}
	s.baseline = nil
	s.surfaced = nil
	s.mu.Unlock()
	s.broadcast(s.viewUpdate())
}

func (s *Synchronizer) teardownLocked() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// View returns a copy of the current view.
func (s *Synchronizer) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.clone()
}

// Phase returns the current phase.
func (s *Synchronizer) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// raise is a notification decided under the lock and delivered after it.
type raise struct {
	notification model.Notification
	acknowledge  bool
}

func (s *Synchronizer) handleSnapshot(gen uint64, records []model.CheckInRecord) {
	s.mu.Lock()
	if gen != s.generation || s.phase == PhaseIdle {
		s.mu.Unlock()
		return
	}

	var raised []raise
	if s.phase == PhaseLoading {
		s.addBaselineLocked(records)
		s.phase = PhaseLive
	} else {
		raised = s.classifyLocked(records)
	}
	s.view = s.join.build(records)
	s.mu.Unlock()

	for _, r := range raised {
		if s.notifier != nil {
			s.notifier.Notify(r.notification)
		}
		if r.acknowledge {
			s.acknowledge(r.notification.AttendeeID, r.notification.CheckedInAt)
		}
		n := r.notification
		s.broadcast(Update{Kind: UpdateNotification, Phase: PhaseLive, Notification: &n})
	}
	s.broadcast(s.viewUpdate())
}

// classifyLocked returns the check-ins in records that nobody has surfaced
// yet. A failure while classifying suppresses notifications for the snapshot.
func (s *Synchronizer) classifyLocked(records []model.CheckInRecord) (raised []raise) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Snapshot classification failed, applying as refresh: %v", r)
			raised = nil
		}
	}()

	now := s.now().UTC()
	for _, rec := range records {
		entry, ok := s.join.entry(rec)
		if !ok {
			continue
		}
		prev, had := s.view[entry.CredentialCode]
		isNew := !had || prev.AttendeeID != entry.AttendeeID || !prev.FirstScanAt.Equal(entry.FirstScanAt)
		if !isNew && rec.Notified {
			continue
		}

		key := keyOf(rec)
		if _, ok := s.baseline[key]; ok {
			continue
		}
		if _, ok := s.surfaced[key]; ok {
			continue
		}
		// A self-scan stays suppressed for its whole lifetime, not just the grace window.
		s.surfaced[key] = struct{}{}
		if s.pending != nil && s.pending.IsPending(rec.AttendeeID) {
			continue
		}

		raised = append(raised, raise{
			notification: model.Notification{
				ID:             uuid.NewString(),
				AttendeeID:     entry.AttendeeID,
				DisplayName:    entry.DisplayName,
				GroupLabel:     entry.GroupLabel,
				SeatID:         entry.SeatID,
				CredentialCode: entry.CredentialCode,
				CheckedInAt:    entry.FirstScanAt,
				RaisedAt:       now,
			},
			acknowledge: !rec.Notified,
		})
	}
	return raised
}

func (s *Synchronizer) addBaselineLocked(records []model.CheckInRecord) {
	for _, rec := range records {
		if rec.CheckedIn() {
			s.baseline[keyOf(rec)] = struct{}{}
		}
	}
}

// acknowledge marks a surfaced check-in as notified so other stations skip it.
// Nothing is written when the record is gone or belongs to a newer lifetime.
func (s *Synchronizer) acknowledge(attendeeID string, firstScanAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	if _, err := s.store.MarkNotified(ctx, attendeeID, firstScanAt); err != nil {
		log.Printf("Failed to mark check-in %s as notified: %v", attendeeID, err)
	}
}

func (s *Synchronizer) handleError(gen uint64, err error) {
	s.mu.Lock()
	current := gen == s.generation
	s.mu.Unlock()
	if !current {
		return
	}

	log.Printf("Check-in stream error: %v", err)
	if s.onError != nil {
		s.onError(fmt.Errorf("check-in stream: %w", err))
	}
	s.broadcast(Update{Kind: UpdateError, Phase: s.Phase(), Error: err.Error()})
}

func (s *Synchronizer) viewUpdate() Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Update{Kind: UpdateView, Phase: s.phase, CheckedIn: len(s.view)}
}

// Watch returns a channel of updates. Slow watchers miss updates rather
// than block the synchronizer.
func (s *Synchronizer) Watch() (<-chan Update, func()) {
	ch := make(chan Update, 16)

	s.watchMu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = ch
	s.watchMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.watchMu.Lock()
			delete(s.watchers, id)
			s.watchMu.Unlock()
			close(ch)
		})
	}
}

func (s *Synchronizer) broadcast(u Update) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- u:
		default:
		}
	}
}
