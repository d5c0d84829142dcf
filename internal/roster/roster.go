// Package roster holds the imported attendee list and its loaders.
package roster

import (
	"fmt"
	"strings"

	"seat-checkin-backend/internal/identity"
	"seat-checkin-backend/internal/model"
)

// Roster is an immutable, ordered attendee list.
type Roster struct {
	attendees []model.Attendee
	byID      map[string]int
}

// New builds a roster from already resolved attendees, preserving order.
func New(attendees []model.Attendee) *Roster {
	r := &Roster{
		attendees: append([]model.Attendee(nil), attendees...),
		byID:      make(map[string]int, len(attendees)),
	}
	for i, a := range r.attendees {
		if a.ID == "" {
			continue
		}
		if _, exists := r.byID[a.ID]; !exists {
			r.byID[a.ID] = i
		}
	}
	return r
}

// FromRows resolves raw rows with the given resolver (nil uses the defaults).
func FromRows(rows []identity.Row, resolver *identity.Resolver) *Roster {
	if resolver == nil {
		resolver = identity.NewResolver(nil)
	}
	attendees := make([]model.Attendee, 0, len(rows))
	for _, row := range rows {
		attendees = append(attendees, resolver.Resolve(row))
	}
	return New(attendees)
}

// Len returns the number of attendees.
func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.attendees)
}

// Attendees returns a copy of the attendee list in roster order.
func (r *Roster) Attendees() []model.Attendee {
	if r == nil {
		return nil
	}
	return append([]model.Attendee(nil), r.attendees...)
}

// Match resolves a scanned credential code to an attendee.
func (r *Roster) Match(code string) (model.Attendee, bool) {
	if r == nil {
		return model.Attendee{}, false
	}
	return identity.MatchByCredential(code, r.attendees)
}

// ByID returns the first attendee with the given ID.
func (r *Roster) ByID(id string) (model.Attendee, bool) {
	if r == nil {
		return model.Attendee{}, false
	}
	i, ok := r.byID[id]
	if !ok {
		return model.Attendee{}, false
	}
	return r.attendees[i], true
}

// ProblemKind classifies a data-quality issue found at import time.
type ProblemKind string

const (
	ProblemMissingID           ProblemKind = "missing_id"
	ProblemMissingCredential   ProblemKind = "missing_credential"
	ProblemDuplicateID         ProblemKind = "duplicate_id"
	ProblemDuplicateCredential ProblemKind = "duplicate_credential"
)

// Problem is one import-time validation finding. Row is 1-based.
type Problem struct {
	Kind    ProblemKind `json:"kind"`
	Row     int         `json:"row"`
	FirstAt int         `json:"firstAt,omitempty"`
	Value   string      `json:"value,omitempty"`
}

func (p Problem) String() string {
	switch p.Kind {
	case ProblemDuplicateID, ProblemDuplicateCredential:
		return fmt.Sprintf("row %d: %s %q already used by row %d", p.Row, p.Kind, p.Value, p.FirstAt)
	default:
		return fmt.Sprintf("row %d: %s", p.Row, p.Kind)
	}
}

// Validate reports rows that cannot be scanned reliably. Duplicate credentials
// still resolve to the first row at scan time; they are surfaced here so the
// source can be fixed.
func (r *Roster) Validate() []Problem {
	if r == nil {
		return nil
	}
	var problems []Problem
	seenID := make(map[string]int)
	seenCode := make(map[string]int)
	for i, a := range r.attendees {
		row := i + 1
		if a.ID == "" {
			problems = append(problems, Problem{Kind: ProblemMissingID, Row: row})
		} else if first, ok := seenID[a.ID]; ok {
			problems = append(problems, Problem{Kind: ProblemDuplicateID, Row: row, FirstAt: first, Value: a.ID})
		} else {
			seenID[a.ID] = row
		}

		code := strings.TrimSpace(a.CredentialCode)
		if code == "" {
			problems = append(problems, Problem{Kind: ProblemMissingCredential, Row: row})
		} else if first, ok := seenCode[code]; ok {
			problems = append(problems, Problem{Kind: ProblemDuplicateCredential, Row: row, FirstAt: first, Value: code})
		} else {
			seenCode[code] = row
		}
	}
	return problems
}
