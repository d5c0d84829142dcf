// Package station wires one scanning station together: the roster, the
// reconciliation engine, the live view and operator notifications.
package station

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"seat-checkin-backend/config"
	"seat-checkin-backend/internal/identity"
	"seat-checkin-backend/internal/liveview"
	"seat-checkin-backend/internal/notification"
	"seat-checkin-backend/internal/projection"
	"seat-checkin-backend/internal/reconcile"
	"seat-checkin-backend/internal/roster"
	"seat-checkin-backend/internal/store"
)

// Service owns the station's components and keeps the roster current.
type Service struct {
	cfg        *config.Config
	store      store.Store
	db         *gorm.DB
	resolver   *identity.Resolver
	engine     *reconcile.Engine
	sync       *liveview.Synchronizer
	board      *notification.Board
	workerPool *notification.WorkerPool

	mu            sync.RWMutex
	roster        *roster.Roster
	problems      []roster.Problem
	generation    uint64
	rosterModTime time.Time
	hooks         []func(*roster.Roster)
}

// NewService creates a station service. db may be nil when the store is not
// SQL-backed; web push is then unavailable.
func NewService(cfg *config.Config, s store.Store, db *gorm.DB) *Service {
	svc := &Service{
		cfg:      cfg,
		store:    s,
		db:       db,
		resolver: identity.NewResolver(identity.DefaultAliases.Extend(cfg.Roster.Aliases)),
		board:    notification.NewBoard(cfg.CheckIn.NotificationTTL),
	}

	if cfg.Push.Enabled && db != nil {
		svc.workerPool = notification.NewWorkerPool(cfg.WorkerPool.Size, db, svc.WebPushOptions())
	} else if cfg.Push.Enabled {
		log.Println("Web push is enabled but the store has no database; push alerts are disabled.")
	}

	svc.engine = reconcile.NewEngine(s,
		reconcile.WithStationID(cfg.CheckIn.StationID),
		reconcile.WithGrace(cfg.CheckIn.SelfScanGrace),
	)
	svc.sync = liveview.New(s, svc.engine, notification.NewDispatcher(svc.board, svc.workerPool),
		liveview.WithWriteTimeout(cfg.CheckIn.WriteTimeout),
	)
	return svc
}

// WebPushOptions returns the VAPID settings, or nil when push is not configured.
func (s *Service) WebPushOptions() *webpush.Options {
	if s.cfg.Push.PublicKey == "" {
		return nil
	}
	return &webpush.Options{
		VAPIDPublicKey:  s.cfg.Push.PublicKey,
		VAPIDPrivateKey: s.cfg.Push.PrivateKey,
		Subscriber:      s.cfg.Push.Subject,
		TTL:             s.cfg.Push.TTL,
	}
}

// Config returns the station configuration.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// DB returns the database handle, or nil for the in-memory store.
func (s *Service) DB() *gorm.DB {
	return s.db
}

func (s *Service) Engine() *reconcile.Engine {
	return s.engine
}

func (s *Service) Sync() *liveview.Synchronizer {
	return s.sync
}

func (s *Service) Board() *notification.Board {
	return s.board
}

// Roster returns the current roster, or nil before the first import.
func (s *Service) Roster() *roster.Roster {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roster
}

// Problems returns the validation problems of the current roster.
func (s *Service) Problems() []roster.Problem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]roster.Problem(nil), s.problems...)
}

// RosterGeneration increases with every roster import.
func (s *Service) RosterGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// OnRosterChange registers fn to run after every roster import.
func (s *Service) OnRosterChange(fn func(*roster.Roster)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// LoadRoster makes r the station's roster and rebuilds the live view for it.
func (s *Service) LoadRoster(ctx context.Context, r *roster.Roster) []roster.Problem {
	problems := r.Validate()
	for _, p := range problems {
		log.Printf("Roster problem: %s", p)
	}

	s.mu.Lock()
	s.roster = r
	s.problems = problems
	s.generation++
	hooks := append(([]func(*roster.Roster))(nil), s.hooks...)
	s.mu.Unlock()

	s.engine.SetRoster(r)
	s.sync.OnRosterReady(ctx, r)
	for _, fn := range hooks {
		fn(r)
	}
	log.Printf("Roster loaded: %d attendees, %d problems", r.Len(), len(problems))
	return problems
}

// ImportRows resolves raw rows into a roster and loads it.
func (s *Service) ImportRows(ctx context.Context, rows []identity.Row) (*roster.Roster, []roster.Problem) {
	r := roster.FromRows(rows, s.resolver)
	return r, s.LoadRoster(ctx, r)
}

// ReloadRosterFile loads the configured roster file if it changed since the
// last load. It reports whether a new roster was loaded.
func (s *Service) ReloadRosterFile(ctx context.Context) (bool, error) {
	path := s.cfg.Roster.Path
	if path == "" {
		return false, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("failed to stat roster %s: %w", path, err)
	}

	s.mu.RLock()
	unchanged := info.ModTime().Equal(s.rosterModTime)
	s.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	r, err := roster.LoadFile(path, s.resolver)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	s.rosterModTime = info.ModTime()
	s.mu.Unlock()

	s.LoadRoster(ctx, r)
	return true, nil
}

// Seats projects the current roster and view onto the seat map.
func (s *Service) Seats() ([]projection.Seat, projection.SeatTotals) {
	r := s.Roster()
	if r == nil {
		return []projection.Seat{}, projection.SeatTotals{}
	}
	seats := projection.Seats(r, s.sync.View())
	return seats, projection.Totals(seats)
}

// Groups projects the current roster and view into group statistics.
func (s *Service) Groups() []projection.GroupStat {
	r := s.Roster()
	if r == nil {
		return []projection.GroupStat{}
	}
	return projection.Groups(r, s.sync.View(), projection.GroupOptions{
		Order:        s.cfg.Projection.GroupOrder,
		UnknownLabel: s.cfg.Projection.UnknownGroupLabel,
		Locale:       s.cfg.Projection.Locale,
	})
}

// Run starts background work and watches the roster file until ctx is done.
func (s *Service) Run(ctx context.Context) {
	log.Printf("Starting station %s...", s.cfg.CheckIn.StationID)

	if s.workerPool != nil {
		s.workerPool.Start(ctx)
	}
	if p, ok := s.store.(store.Poller); ok {
		go p.Run(ctx)
	}

	s.reload(ctx)

	timer := time.NewTimer(s.cfg.Roster.ReloadInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Station service shutting down.")
			s.sync.Close()
			return
		case <-timer.C:
			s.reload(ctx)
			timer.Reset(s.cfg.Roster.ReloadInterval)
		}
	}
}

func (s *Service) reload(ctx context.Context) {
	if _, err := s.ReloadRosterFile(ctx); err != nil {
		log.Printf("Error reloading roster: %v", err)
	}
}
