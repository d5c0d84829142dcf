package model

import "time"

// ScanMethod records how a credential was presented.
type ScanMethod string

const (
	ScanMethodCard  ScanMethod = "card"
	ScanMethodOther ScanMethod = "other"
)

// Valid reports whether m is a known scan method.
func (m ScanMethod) Valid() bool {
	return m == ScanMethodCard || m == ScanMethodOther
}

// CheckInRecord is the shared proof that an attendee has been scanned.
// FirstScanAt is written at most once per record lifetime.
type CheckInRecord struct {
	AttendeeID  string     `gorm:"primaryKey;size:128" json:"attendeeId"`
	FirstScanAt *time.Time `json:"firstScanAt"`
	LastScanAt  time.Time  `gorm:"not null" json:"lastScanAt"`
	ScanMethod  ScanMethod `gorm:"size:16;not null" json:"scanMethod"`
	Notified    bool       `gorm:"not null" json:"notified"`

	// Denormalized so stations with an older roster can still render the record.
	DisplayName string `gorm:"size:256" json:"displayName,omitempty"`
	GroupLabel  string `gorm:"size:256" json:"groupLabel,omitempty"`
	SeatID      string `gorm:"size:64" json:"seatId,omitempty"`

	StationID string    `gorm:"size:64" json:"stationId,omitempty"`
	UpdatedAt time.Time `gorm:"not null;index" json:"updatedAt"`
}

// CheckedIn reports whether the record carries a first scan time.
func (r CheckInRecord) CheckedIn() bool {
	return r.FirstScanAt != nil && !r.FirstScanAt.IsZero()
}
