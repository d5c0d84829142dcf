package store

import (
	"context"
	"sync"

	"seat-checkin-backend/internal/model"
)

// SnapshotFunc receives a full snapshot of the collection.
type SnapshotFunc func([]model.CheckInRecord)

// ErrorFunc receives errors raised while producing a snapshot.
type ErrorFunc func(error)

// feed fans full snapshots out to subscribers. Loads are serialized, so each
// subscriber sees snapshots in load order; a subscriber that falls behind only
// gets the newest one.
type feed struct {
	load func(context.Context) ([]model.CheckInRecord, error)

	mu         sync.Mutex
	subs       map[int]*subscriber
	nextID     int
	publishing bool
	again      bool
}

func newFeed(load func(context.Context) ([]model.CheckInRecord, error)) *feed {
	return &feed{load: load, subs: make(map[int]*subscriber)}
}

// subscribe registers a listener and schedules a snapshot for it.
func (f *feed) subscribe(onSnapshot SnapshotFunc, onError ErrorFunc) func() {
	s := &subscriber{
		onSnapshot: onSnapshot,
		onError:    onError,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = s
	f.mu.Unlock()

	go s.run()
	f.notify()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(s.done)
		})
	}
}

// notify schedules a publish without blocking the caller. Requests made while
// a publish is running collapse into one more publish.
func (f *feed) notify() {
	f.mu.Lock()
	if len(f.subs) == 0 {
		f.mu.Unlock()
		return
	}
	if f.publishing {
		f.again = true
		f.mu.Unlock()
		return
	}
	f.publishing = true
	f.mu.Unlock()

	go f.publishLoop()
}

func (f *feed) publishLoop() {
	for {
		records, err := f.load(context.Background())

		f.mu.Lock()
		for _, s := range f.subs {
			s.offer(records, err)
		}
		if !f.again {
			f.publishing = false
			f.mu.Unlock()
			return
		}
		f.again = false
		f.mu.Unlock()
	}
}

type subscriber struct {
	onSnapshot SnapshotFunc
	onError    ErrorFunc

	mu      sync.Mutex
	pending []model.CheckInRecord
	hasSnap bool
	err     error

	wake chan struct{}
	done chan struct{}
}

func (s *subscriber) offer(records []model.CheckInRecord, err error) {
	s.mu.Lock()
	if err != nil {
		s.err = err
	} else {
		s.pending = copyRecords(records)
		s.hasSnap = true
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		s.mu.Lock()
		snap, hasSnap, err := s.pending, s.hasSnap, s.err
		s.pending, s.hasSnap, s.err = nil, false, nil
		s.mu.Unlock()

		select {
		case <-s.done:
			return
		default:
		}
		if err != nil && s.onError != nil {
			s.onError(err)
		}
		if hasSnap && s.onSnapshot != nil {
			s.onSnapshot(snap)
		}
	}
}

func copyRecords(records []model.CheckInRecord) []model.CheckInRecord {
	out := make([]model.CheckInRecord, len(records))
	for i, r := range records {
		out[i] = copyRecord(r)
	}
	return out
}

func copyRecord(r model.CheckInRecord) model.CheckInRecord {
	if r.FirstScanAt != nil {
		r.FirstScanAt = Time(*r.FirstScanAt)
	}
	return r
}
