package projection

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"seat-checkin-backend/internal/liveview"
	"seat-checkin-backend/internal/roster"
)

// Member is an attendee listed under a group.
type Member struct {
	AttendeeID     string     `json:"attendeeId"`
	DisplayName    string     `json:"displayName"`
	SeatID         string     `json:"seatId"`
	CredentialCode string     `json:"credentialCode"`
	CheckedInAt    *time.Time `json:"checkedInAt,omitempty"`
}

// GroupStat is the attendance of one group.
type GroupStat struct {
	Label     string   `json:"label"`
	Total     int      `json:"total"`
	CheckedIn int      `json:"checkedIn"`
	Arrived   []Member `json:"arrived"`
	Pending   []Member `json:"pending"`
}

// GroupOptions controls grouping and ordering.
type GroupOptions struct {
	// Order lists label fragments; a group sorts by the first fragment it
	// contains, case-insensitively. Unmatched groups come last.
	Order        []string
	UnknownLabel string
	Locale       string
}

// Groups computes per-group attendance for every attendee in the roster.
func Groups(r *roster.Roster, v liveview.View, opts GroupOptions) []GroupStat {
	unknown := opts.UnknownLabel
	if unknown == "" {
		unknown = "Unassigned"
	}
	tag := language.Make(opts.Locale)
	names := collate.New(tag, collate.IgnoreCase)

	byLabel := make(map[string]*GroupStat)
	var labels []string
	for _, a := range r.Attendees() {
		label := strings.TrimSpace(a.GroupLabel)
		if label == "" {
			label = unknown
		}
		g, ok := byLabel[label]
		if !ok {
			g = &GroupStat{Label: label, Arrived: []Member{}, Pending: []Member{}}
			byLabel[label] = g
			labels = append(labels, label)
		}

		m := Member{
			AttendeeID:     a.ID,
			DisplayName:    a.DisplayName,
			SeatID:         a.SeatID,
			CredentialCode: a.CredentialCode,
		}
		g.Total++
		if e, ok := checkIn(a, v); ok {
			at := e.FirstScanAt
			m.CheckedInAt = &at
			g.CheckedIn++
			g.Arrived = append(g.Arrived, m)
		} else {
			g.Pending = append(g.Pending, m)
		}
	}

	out := make([]GroupStat, 0, len(labels))
	for _, label := range labels {
		g := byLabel[label]
		sort.SliceStable(g.Arrived, func(i, j int) bool {
			return g.Arrived[i].CheckedInAt.Before(*g.Arrived[j].CheckedInAt)
		})
		sort.SliceStable(g.Pending, func(i, j int) bool {
			return names.CompareString(g.Pending[i].DisplayName, g.Pending[j].DisplayName) < 0
		})
		out = append(out, *g)
	}

	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := priority(out[i].Label, opts.Order), priority(out[j].Label, opts.Order)
		if pi != pj {
			return pi < pj
		}
		return names.CompareString(out[i].Label, out[j].Label) < 0
	})
	return out
}

func priority(label string, order []string) int {
	lower := strings.ToLower(label)
	for i, fragment := range order {
		fragment = strings.ToLower(strings.TrimSpace(fragment))
		if fragment != "" && strings.Contains(lower, fragment) {
			return i
		}
	}
	return len(order)
}
