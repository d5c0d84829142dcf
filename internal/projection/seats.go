// Package projection derives seat occupancy and group statistics from the
// roster and the live view.
package projection

import (
	"sort"
	"strings"
	"time"

	"seat-checkin-backend/internal/liveview"
	"seat-checkin-backend/internal/model"
	"seat-checkin-backend/internal/parse"
	"seat-checkin-backend/internal/roster"
)

// Seat is one seat on the map.
type Seat struct {
	SeatID         string     `json:"seatId"`
	Zone           string     `json:"zone,omitempty"`
	Row            int        `json:"row,omitempty"`
	Col            int        `json:"col,omitempty"`
	Number         int        `json:"number,omitempty"`
	AttendeeID     string     `json:"attendeeId"`
	DisplayName    string     `json:"displayName"`
	GroupLabel     string     `json:"groupLabel"`
	CredentialCode string     `json:"credentialCode"`
	CheckedIn      bool       `json:"checkedIn"`
	CheckedInAt    *time.Time `json:"checkedInAt,omitempty"`

	parsed bool
}

// SeatTotals summarizes a seat map.
type SeatTotals struct {
	Total     int `json:"total"`
	CheckedIn int `json:"checkedIn"`
	Remaining int `json:"remaining"`
}

// checkIn returns the view entry for a when it belongs to that attendee.
func checkIn(a model.Attendee, v liveview.View) (liveview.Entry, bool) {
	e, ok := v[strings.TrimSpace(a.CredentialCode)]
	if !ok || e.AttendeeID != a.ID {
		return liveview.Entry{}, false
	}
	return e, true
}

// Seats builds one seat per distinct seat ID. When two roster rows share a
// seat, the later row occupies it.
func Seats(r *roster.Roster, v liveview.View) []Seat {
	index := make(map[string]int)
	var seats []Seat
	for _, a := range r.Attendees() {
		id := strings.TrimSpace(a.SeatID)
		if id == "" {
			continue
		}
		seat := Seat{
			SeatID:         id,
			AttendeeID:     a.ID,
			DisplayName:    a.DisplayName,
			GroupLabel:     a.GroupLabel,
			CredentialCode: a.CredentialCode,
		}
		if p, err := parse.ParseSeat(id); err == nil {
			seat.Zone, seat.Row, seat.Col, seat.Number = p.Zone, p.Row, p.Col, p.Number
			seat.parsed = true
		}
		if e, ok := checkIn(a, v); ok {
			at := e.FirstScanAt
			seat.CheckedIn = true
			seat.CheckedInAt = &at
		}

		if i, ok := index[id]; ok {
			seats[i] = seat
			continue
		}
		index[id] = len(seats)
		seats = append(seats, seat)
	}

	sort.SliceStable(seats, func(i, j int) bool { return seatLess(seats[i], seats[j]) })
	return seats
}

func seatLess(a, b Seat) bool {
	if a.parsed != b.parsed {
		return a.parsed
	}
	if !a.parsed {
		return a.SeatID < b.SeatID
	}
	aNum, bNum := a.Zone == "" && a.Number > 0, b.Zone == "" && b.Number > 0
	if aNum != bNum {
		return aNum
	}
	if aNum {
		if a.Number != b.Number {
			return a.Number < b.Number
		}
		return a.SeatID < b.SeatID
	}
	if a.Zone != b.Zone {
		return a.Zone < b.Zone
	}
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	if a.Col != b.Col {
		return a.Col < b.Col
	}
	if a.Number != b.Number {
		return a.Number < b.Number
	}
	return a.SeatID < b.SeatID
}

// Totals counts seats by occupancy.
func Totals(seats []Seat) SeatTotals {
	t := SeatTotals{Total: len(seats)}
	for _, s := range seats {
		if s.CheckedIn {
			t.CheckedIn++
		}
	}
	t.Remaining = t.Total - t.CheckedIn
	return t
}
