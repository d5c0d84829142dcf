package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"seat-checkin-backend/internal/model"
)

// memoryStore keeps the collection in process. It backs the "memory" database
// driver for single-station demos and the engine tests.
type memoryStore struct {
	mu      sync.RWMutex
	records map[string]model.CheckInRecord
	feed    *feed
	now     func() time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() Store {
	s := &memoryStore{records: make(map[string]model.CheckInRecord), now: time.Now}
	s.feed = newFeed(s.ListAll)
	return s
}

func (s *memoryStore) Get(ctx context.Context, attendeeID string) (model.CheckInRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.CheckInRecord{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[attendeeID]
	if !ok {
		return model.CheckInRecord{}, false, nil
	}
	return copyRecord(rec), true, nil
}

func (s *memoryStore) UpsertMerge(ctx context.Context, attendeeID string, patch Patch) error {
	if attendeeID == "" {
		return fmt.Errorf("upsert check-in: empty attendee id")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	now := s.now().UTC()

	s.mu.Lock()
	rec, ok := s.records[attendeeID]
	if !ok {
		rec = model.CheckInRecord{AttendeeID: attendeeID, LastScanAt: now, ScanMethod: model.ScanMethodOther}
	}
	patch.apply(&rec)
	rec.UpdatedAt = now
	s.records[attendeeID] = rec
	s.mu.Unlock()

	s.feed.notify()
	return nil
}

func (s *memoryStore) MarkNotified(ctx context.Context, attendeeID string, firstScanAt time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	rec, ok := s.records[attendeeID]
	if !ok || rec.Notified || !rec.CheckedIn() || !rec.FirstScanAt.Equal(firstScanAt) {
		s.mu.Unlock()
		return false, nil
	}
	rec.Notified = true
	rec.UpdatedAt = s.now().UTC()
	s.records[attendeeID] = rec
	s.mu.Unlock()

	s.feed.notify()
	return true, nil
}

func (s *memoryStore) Delete(ctx context.Context, attendeeID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.records, attendeeID)
	s.mu.Unlock()

	s.feed.notify()
	return nil
}

func (s *memoryStore) ListAll(ctx context.Context) ([]model.CheckInRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]model.CheckInRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, copyRecord(rec))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].AttendeeID < out[j].AttendeeID })
	return out, nil
}

func (s *memoryStore) Subscribe(onSnapshot SnapshotFunc, onError ErrorFunc) func() {
	return s.feed.subscribe(onSnapshot, onError)
}
