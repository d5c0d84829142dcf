package store

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"seat-checkin-backend/internal/model"
)

// newSQLiteDB opens a private in-memory database for one test.
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.CheckInRecord{}))
	return db
}

// recorder collects snapshots delivered to a subscriber.
type recorder struct {
	mu    sync.Mutex
	snaps [][]model.CheckInRecord
	errs  []error
}

func (r *recorder) onSnapshot(records []model.CheckInRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, records)
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func (r *recorder) last() []model.CheckInRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return nil
	}
	return r.snaps[len(r.snaps)-1]
}

// storeFactories runs the same behavioral tests against every implementation.
var storeFactories = map[string]func(t *testing.T) Store{
	"gorm": func(t *testing.T) Store { return NewGormStore(newSQLiteDB(t), 0) },
	"memory": func(t *testing.T) Store {
		return NewMemoryStore()
	},
}

func TestStore_UpsertMerge(t *testing.T) {
	first := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	later := first.Add(10 * time.Minute)

	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			_, found, err := s.Get(ctx, "A-1")
			require.NoError(t, err)
			assert.False(t, found)

			err = s.UpsertMerge(ctx, "A-1", Patch{
				FirstScanAt: Time(first),
				LastScanAt:  Time(first),
				ScanMethod:  model.ScanMethodCard,
				Notified:    Bool(true),
				DisplayName: "Nguyễn Văn An",
				SeatID:      "A12",
				StationID:   "gate-1",
			})
			require.NoError(t, err)

			rec, found, err := s.Get(ctx, "A-1")
			require.NoError(t, err)
			require.True(t, found)
			require.NotNil(t, rec.FirstScanAt)
			assert.True(t, first.Equal(*rec.FirstScanAt))
			assert.True(t, first.Equal(rec.LastScanAt))
			assert.Equal(t, model.ScanMethodCard, rec.ScanMethod)
			assert.True(t, rec.Notified)
			assert.Equal(t, "Nguyễn Văn An", rec.DisplayName)
			assert.Equal(t, "A12", rec.SeatID)

			// A second first-scan attempt must not move first_scan_at.
			err = s.UpsertMerge(ctx, "A-1", Patch{
				FirstScanAt: Time(later),
				LastScanAt:  Time(later),
				ScanMethod:  model.ScanMethodOther,
				StationID:   "gate-2",
			})
			require.NoError(t, err)

			rec, _, err = s.Get(ctx, "A-1")
			require.NoError(t, err)
			assert.True(t, first.Equal(*rec.FirstScanAt), "first_scan_at is write-once")
			assert.True(t, later.Equal(rec.LastScanAt))
			assert.Equal(t, model.ScanMethodOther, rec.ScanMethod)
			assert.Equal(t, "gate-2", rec.StationID)
			assert.Equal(t, "A12", rec.SeatID, "untouched fields are kept")
			assert.True(t, rec.Notified, "untouched fields are kept")
		})
	}
}

func TestStore_UpsertMergeCreatesFromPartialPatch(t *testing.T) {
	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			require.NoError(t, s.UpsertMerge(ctx, "B-7", Patch{Notified: Bool(true)}))

			rec, found, err := s.Get(ctx, "B-7")
			require.NoError(t, err)
			require.True(t, found)
			assert.False(t, rec.CheckedIn())
			assert.True(t, rec.Notified)
			assert.Equal(t, model.ScanMethodOther, rec.ScanMethod)
		})
	}
}

func TestStore_UpsertMergeRejectsEmptyID(t *testing.T) {
	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			assert.Error(t, s.UpsertMerge(context.Background(), "", Patch{Notified: Bool(true)}))
		})
	}
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			require.NoError(t, s.UpsertMerge(ctx, "A-1", Patch{FirstScanAt: Time(now), LastScanAt: Time(now)}))
			require.NoError(t, s.Delete(ctx, "A-1"))
			require.NoError(t, s.Delete(ctx, "A-1"))
			require.NoError(t, s.Delete(ctx, "never-existed"))

			_, found, err := s.Get(ctx, "A-1")
			require.NoError(t, err)
			assert.False(t, found)

			// After a delete a new first scan starts a new lifetime.
			again := now.Add(time.Hour)
			require.NoError(t, s.UpsertMerge(ctx, "A-1", Patch{FirstScanAt: Time(again), LastScanAt: Time(again)}))
			rec, _, err := s.Get(ctx, "A-1")
			require.NoError(t, err)
			assert.True(t, again.Equal(*rec.FirstScanAt))
		})
	}
}

func TestStore_MarkNotified(t *testing.T) {
	first := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			updated, err := s.MarkNotified(ctx, "A-1", first)
			require.NoError(t, err)
			assert.False(t, updated)
			_, found, err := s.Get(ctx, "A-1")
			require.NoError(t, err)
			assert.False(t, found, "an absent record is not created")

			require.NoError(t, s.UpsertMerge(ctx, "A-1", Patch{FirstScanAt: Time(first), LastScanAt: Time(first), Notified: Bool(false)}))

			updated, err = s.MarkNotified(ctx, "A-1", first.Add(time.Second))
			require.NoError(t, err)
			assert.False(t, updated, "another lifetime does not match")

			updated, err = s.MarkNotified(ctx, "A-1", first)
			require.NoError(t, err)
			assert.True(t, updated)
			rec, _, err := s.Get(ctx, "A-1")
			require.NoError(t, err)
			assert.True(t, rec.Notified)
			assert.True(t, first.Equal(*rec.FirstScanAt))

			updated, err = s.MarkNotified(ctx, "A-1", first)
			require.NoError(t, err)
			assert.False(t, updated, "already notified")

			require.NoError(t, s.Delete(ctx, "A-1"))
			updated, err = s.MarkNotified(ctx, "A-1", first)
			require.NoError(t, err)
			assert.False(t, updated)
			records, err := s.ListAll(ctx)
			require.NoError(t, err)
			assert.Empty(t, records, "a deleted record stays deleted")

			require.NoError(t, s.UpsertMerge(ctx, "B-1", Patch{Notified: Bool(false)}))
			updated, err = s.MarkNotified(ctx, "B-1", first)
			require.NoError(t, err)
			assert.False(t, updated, "a record without a first scan is not a check-in")
		})
	}
}

func TestStore_ListAllOrdered(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			for _, id := range []string{"C", "A", "B"} {
				require.NoError(t, s.UpsertMerge(ctx, id, Patch{FirstScanAt: Time(now), LastScanAt: Time(now)}))
			}

			records, err := s.ListAll(ctx)
			require.NoError(t, err)
			require.Len(t, records, 3)
			assert.Equal(t, "A", records[0].AttendeeID)
			assert.Equal(t, "B", records[1].AttendeeID)
			assert.Equal(t, "C", records[2].AttendeeID)
		})
	}
}

func TestStore_SubscribeDeliversInitialAndUpdates(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()
			require.NoError(t, s.UpsertMerge(ctx, "A", Patch{FirstScanAt: Time(now), LastScanAt: Time(now)}))

			rec := &recorder{}
			unsubscribe := s.Subscribe(rec.onSnapshot, rec.onError)
			defer unsubscribe()

			assert.Eventually(t, func() bool {
				return rec.count() >= 1 && len(rec.last()) == 1
			}, time.Second, 5*time.Millisecond, "initial snapshot should arrive")

			for _, id := range []string{"B", "C", "D"} {
				require.NoError(t, s.UpsertMerge(ctx, id, Patch{FirstScanAt: Time(now), LastScanAt: Time(now)}))
			}
			require.NoError(t, s.Delete(ctx, "A"))

			assert.Eventually(t, func() bool {
				last := rec.last()
				return len(last) == 3 && last[0].AttendeeID == "B"
			}, time.Second, 5*time.Millisecond, "latest snapshot should reflect every write")

			unsubscribe()
			time.Sleep(50 * time.Millisecond)
			seen := rec.count()
			require.NoError(t, s.UpsertMerge(ctx, "E", Patch{FirstScanAt: Time(now), LastScanAt: Time(now)}))
			time.Sleep(50 * time.Millisecond)
			assert.Equal(t, seen, rec.count(), "no snapshots after unsubscribe")
		})
	}
}

func TestStore_SnapshotsAreCopies(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.UpsertMerge(ctx, "A", Patch{FirstScanAt: Time(now), LastScanAt: Time(now)}))

	records, err := s.ListAll(ctx)
	require.NoError(t, err)
	*records[0].FirstScanAt = now.Add(time.Hour)

	rec, _, err := s.Get(ctx, "A")
	require.NoError(t, err)
	assert.True(t, now.Equal(*rec.FirstScanAt))
}

func TestGormStore_PollerSeesOtherWriters(t *testing.T) {
	db := newSQLiteDB(t)
	watcher := NewGormStore(db, 20*time.Millisecond)
	writer := NewGormStore(db, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.(Poller).Run(ctx)

	rec := &recorder{}
	unsubscribe := watcher.Subscribe(rec.onSnapshot, rec.onError)
	defer unsubscribe()

	assert.Eventually(t, func() bool { return rec.count() >= 1 }, time.Second, 5*time.Millisecond)

	now := time.Now().UTC()
	require.NoError(t, writer.UpsertMerge(context.Background(), "remote-1", Patch{FirstScanAt: Time(now), LastScanAt: Time(now)}))

	assert.Eventually(t, func() bool {
		last := rec.last()
		return len(last) == 1 && last[0].AttendeeID == "remote-1"
	}, 2*time.Second, 10*time.Millisecond, "poller should publish writes from another store")
}
