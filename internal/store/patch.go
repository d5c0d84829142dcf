package store

import (
	"time"

	"seat-checkin-backend/internal/model"
)

// Patch lists the fields a merge write touches. Nil pointers and empty strings
// leave the stored value alone.
type Patch struct {
	FirstScanAt *time.Time
	LastScanAt  *time.Time
	ScanMethod  model.ScanMethod
	Notified    *bool

	DisplayName string
	GroupLabel  string
	SeatID      string
	StationID   string
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// Time returns a pointer to t.
func Time(t time.Time) *time.Time { return &t }

func (p Patch) columns() map[string]any {
	cols := make(map[string]any)
	if p.FirstScanAt != nil {
		cols["first_scan_at"] = p.FirstScanAt.UTC()
	}
	if p.LastScanAt != nil {
		cols["last_scan_at"] = p.LastScanAt.UTC()
	}
	if p.ScanMethod != "" {
		cols["scan_method"] = string(p.ScanMethod)
	}
	if p.Notified != nil {
		cols["notified"] = *p.Notified
	}
	if p.DisplayName != "" {
		cols["display_name"] = p.DisplayName
	}
	if p.GroupLabel != "" {
		cols["group_label"] = p.GroupLabel
	}
	if p.SeatID != "" {
		cols["seat_id"] = p.SeatID
	}
	if p.StationID != "" {
		cols["station_id"] = p.StationID
	}
	return cols
}

// apply merges the patch into rec with the same rules as the SQL upsert.
func (p Patch) apply(rec *model.CheckInRecord) {
	if p.FirstScanAt != nil && !rec.CheckedIn() {
		rec.FirstScanAt = Time(p.FirstScanAt.UTC())
	}
	if p.LastScanAt != nil {
		rec.LastScanAt = p.LastScanAt.UTC()
	}
	if p.ScanMethod != "" {
		rec.ScanMethod = p.ScanMethod
	}
	if p.Notified != nil {
		rec.Notified = *p.Notified
	}
	if p.DisplayName != "" {
		rec.DisplayName = p.DisplayName
	}
	if p.GroupLabel != "" {
		rec.GroupLabel = p.GroupLabel
	}
	if p.SeatID != "" {
		rec.SeatID = p.SeatID
	}
	if p.StationID != "" {
		rec.StationID = p.StationID
	}
}
