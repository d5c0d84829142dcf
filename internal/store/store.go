// Package store is the only code that talks to the shared check-in store.
// Every operation is scoped to a single attendee's record.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"seat-checkin-backend/internal/model"
)

// Store defines the operations on the shared check-in collection.
type Store interface {
	// Get returns the record for attendeeID; found is false when it does not exist.
	Get(ctx context.Context, attendeeID string) (rec model.CheckInRecord, found bool, err error)
	// UpsertMerge writes only the fields set in patch, creating the record if needed.
	// FirstScanAt is never overwritten once stored.
	UpsertMerge(ctx context.Context, attendeeID string, patch Patch) error
	// MarkNotified sets notified on the record only while it is still the
	// check-in that started at firstScanAt and not yet notified. It never
	// creates a record; updated is false when nothing matched.
	MarkNotified(ctx context.Context, attendeeID string, firstScanAt time.Time) (updated bool, err error)
	// Delete removes the record. Deleting an absent record succeeds.
	Delete(ctx context.Context, attendeeID string) error
	// ListAll returns every record ordered by attendee ID.
	ListAll(ctx context.Context) ([]model.CheckInRecord, error)
	// Subscribe delivers the current full snapshot, then a new one after every change.
	Subscribe(onSnapshot SnapshotFunc, onError ErrorFunc) (unsubscribe func())
}

// Poller is implemented by stores that have to poll to observe writes made by
// other processes.
type Poller interface {
	Run(ctx context.Context)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db           *gorm.DB
	feed         *feed
	now          func() time.Time
	pollInterval time.Duration
}

// NewGormStore creates a new GORM-backed store. pollInterval controls how often
// Run checks for writes from other stations; zero disables polling.
func NewGormStore(db *gorm.DB, pollInterval time.Duration) Store {
	s := &gormStore{db: db, now: time.Now, pollInterval: pollInterval}
	s.feed = newFeed(s.ListAll)
	return s
}

// Get fetches a single record by primary key.
func (s *gormStore) Get(ctx context.Context, attendeeID string) (model.CheckInRecord, bool, error) {
	var rec model.CheckInRecord
	err := s.db.WithContext(ctx).Where("attendee_id = ?", attendeeID).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CheckInRecord{}, false, nil
	}
	if err != nil {
		return model.CheckInRecord{}, false, fmt.Errorf("failed to read check-in %s: %w", attendeeID, err)
	}
	return rec, true, nil
}

// UpsertMerge inserts or merges the patch into the record in one statement.
// first_scan_at is kept when already set, so concurrent first scans from two
// stations resolve to whichever reached the database first.
func (s *gormStore) UpsertMerge(ctx context.Context, attendeeID string, patch Patch) error {
	if attendeeID == "" {
		return fmt.Errorf("upsert check-in: empty attendee id")
	}
	now := s.now().UTC()
	assigned := patch.columns()
	assigned["updated_at"] = now

	values := insertDefaults(attendeeID, now)
	updates := make([]string, 0, len(assigned))
	for col, v := range assigned {
		values[col] = v
		if col != "first_scan_at" {
			updates = append(updates, col)
		}
	}

	set := clause.AssignmentColumns(updates)
	if _, ok := assigned["first_scan_at"]; ok {
		set = append(set, clause.Assignment{
			Column: clause.Column{Name: "first_scan_at"},
			Value:  gorm.Expr("COALESCE(check_in_records.first_scan_at, excluded.first_scan_at)"),
		})
	}

	err := s.db.WithContext(ctx).
		Model(&model.CheckInRecord{}).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attendee_id"}},
			DoUpdates: set,
		}).
		Create(values).Error
	if err != nil {
		return fmt.Errorf("failed to upsert check-in %s: %w", attendeeID, err)
	}
	s.feed.notify()
	return nil
}

// MarkNotified is a guarded UPDATE; a deleted or re-scanned record matches no row.
func (s *gormStore) MarkNotified(ctx context.Context, attendeeID string, firstScanAt time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&model.CheckInRecord{}).
		Where("attendee_id = ? AND first_scan_at = ? AND notified = ?", attendeeID, firstScanAt.UTC(), false).
		Updates(map[string]any{"notified": true, "updated_at": s.now().UTC()})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark check-in %s as notified: %w", attendeeID, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	s.feed.notify()
	return true, nil
}

// Delete removes a record; no matching row is not an error.
func (s *gormStore) Delete(ctx context.Context, attendeeID string) error {
	if err := s.db.WithContext(ctx).Where("attendee_id = ?", attendeeID).Delete(&model.CheckInRecord{}).Error; err != nil {
		return fmt.Errorf("failed to delete check-in %s: %w", attendeeID, err)
	}
	s.feed.notify()
	return nil
}

// ListAll fetches the whole collection.
func (s *gormStore) ListAll(ctx context.Context) ([]model.CheckInRecord, error) {
	var records []model.CheckInRecord
	if err := s.db.WithContext(ctx).Order("attendee_id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}
	return records, nil
}

// Subscribe registers a snapshot listener.
func (s *gormStore) Subscribe(onSnapshot SnapshotFunc, onError ErrorFunc) func() {
	return s.feed.subscribe(onSnapshot, onError)
}

// Run polls the table fingerprint and publishes a snapshot when another
// process changed it.
func (s *gormStore) Run(ctx context.Context) {
	if s.pollInterval <= 0 {
		log.Println("Check-in store polling is disabled.")
		return
	}
	log.Printf("Polling check-in store every %s", s.pollInterval)

	last, err := s.fingerprint(ctx)
	if err != nil {
		log.Printf("Error reading check-in store fingerprint: %v", err)
	}

	timer := time.NewTimer(s.pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Check-in store poller shutting down.")
			return
		case <-timer.C:
			current, err := s.fingerprint(ctx)
			if err != nil {
				log.Printf("Error reading check-in store fingerprint: %v", err)
			} else if current != last {
				last = current
				s.feed.notify()
			}
			timer.Reset(s.pollInterval)
		}
	}
}

// fingerprint changes whenever a row is inserted, updated or deleted.
func (s *gormStore) fingerprint(ctx context.Context) (string, error) {
	var (
		count  int64
		latest sql.NullString
	)
	row := s.db.WithContext(ctx).
		Model(&model.CheckInRecord{}).
		Select("COUNT(*), MAX(updated_at)").
		Row()
	if err := row.Scan(&count, &latest); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d|%s", count, latest.String), nil
}

// insertDefaults satisfies NOT NULL columns when a merge creates a record.
func insertDefaults(attendeeID string, now time.Time) map[string]any {
	return map[string]any{
		"attendee_id":  attendeeID,
		"last_scan_at": now,
		"scan_method":  string(model.ScanMethodOther),
		"notified":     false,
		"updated_at":   now,
	}
}
