package liveview

import (
	"sort"
	"strings"
	"time"

	"seat-checkin-backend/internal/model"
	"seat-checkin-backend/internal/roster"
)

// Phase is the synchronizer state for the current roster.
type Phase int

const (
	// PhaseIdle means no roster is loaded and nothing is subscribed.
	PhaseIdle Phase = iota
	// PhaseLoading means the first stream snapshot has not been applied yet.
	PhaseLoading
	// PhaseLive means every snapshot is classified for notifications.
	PhaseLive
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseLive:
		return "live"
	default:
		return "idle"
	}
}

// MarshalText renders the phase by name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Entry is a check-in joined with the attendee it belongs to.
type Entry struct {
	CredentialCode string           `json:"credentialCode"`
	AttendeeID     string           `json:"attendeeId"`
	DisplayName    string           `json:"displayName"`
	GroupLabel     string           `json:"groupLabel"`
	SeatID         string           `json:"seatId"`
	PhotoRef       string           `json:"photoRef,omitempty"`
	FirstScanAt    time.Time        `json:"firstScanAt"`
	LastScanAt     time.Time        `json:"lastScanAt"`
	ScanMethod     model.ScanMethod `json:"scanMethod"`
	Notified       bool             `json:"notified"`
	StationID      string           `json:"stationId,omitempty"`
}

// View maps credential codes to check-ins.
type View map[string]Entry

// CheckedIn reports whether code has a check-in.
func (v View) CheckedIn(code string) bool {
	_, ok := v[strings.TrimSpace(code)]
	return ok
}

// Entries returns the entries ordered by first scan time, newest first.
func (v View) Entries() []Entry {
	out := make([]Entry, 0, len(v))
	for _, e := range v {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FirstScanAt.Equal(out[j].FirstScanAt) {
			return out[i].FirstScanAt.After(out[j].FirstScanAt)
		}
		return out[i].CredentialCode < out[j].CredentialCode
	})
	return out
}

func (v View) clone() View {
	out := make(View, len(v))
	for k, e := range v {
		out[k] = e
	}
	return out
}

// join resolves records against a roster. A credential shared by several
// attendees belongs to the first of them in roster order.
type join struct {
	roster *roster.Roster
	owners map[string]string
}

func newJoin(r *roster.Roster) join {
	j := join{roster: r, owners: make(map[string]string)}
	for _, a := range r.Attendees() {
		code := strings.TrimSpace(a.CredentialCode)
		if code == "" || a.ID == "" {
			continue
		}
		if _, taken := j.owners[code]; !taken {
			j.owners[code] = a.ID
		}
	}
	return j
}

// entry returns the view entry for rec, or false when the record has no first
// scan or no owner in the roster.
func (j join) entry(rec model.CheckInRecord) (Entry, bool) {
	if !rec.CheckedIn() {
		return Entry{}, false
	}
	a, ok := j.roster.ByID(rec.AttendeeID)
	if !ok {
		return Entry{}, false
	}
	code := strings.TrimSpace(a.CredentialCode)
	if code == "" || j.owners[code] != a.ID {
		return Entry{}, false
	}
	return Entry{
		CredentialCode: code,
		AttendeeID:     a.ID,
		DisplayName:    firstNonEmpty(rec.DisplayName, a.DisplayName),
		GroupLabel:     firstNonEmpty(rec.GroupLabel, a.GroupLabel),
		SeatID:         firstNonEmpty(rec.SeatID, a.SeatID),
		PhotoRef:       a.PhotoRef,
		FirstScanAt:    *rec.FirstScanAt,
		LastScanAt:     rec.LastScanAt,
		ScanMethod:     rec.ScanMethod,
		Notified:       rec.Notified,
		StationID:      rec.StationID,
	}, true
}

func (j join) build(records []model.CheckInRecord) View {
	v := make(View, len(records))
	for _, rec := range records {
		if e, ok := j.entry(rec); ok {
			v[e.CredentialCode] = e
		}
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
