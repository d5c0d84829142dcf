package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// KM12, TDV 3-14, B#7
	seatRe  = regexp.MustCompile(`^(.*?)[\s#-]*(\d+)(?:\s*[-.]\s*(\d+))?$`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// ParsedSeat holds the structured data parsed from a seat identifier.
// Number is set for purely numeric seats; Row and Col for zoned grid seats.
type ParsedSeat struct {
	Zone   string
	Row    int
	Col    int
	Number int
}

// Numeric reports whether the seat id was a bare number.
func (p ParsedSeat) Numeric() bool {
	return p.Zone == "" && p.Number > 0
}

// ParseSeat extracts zone, row and column from a raw seat identifier.
//
// Layout codes pack a single-digit row and column after the zone prefix
// (KM12 is zone KM, row 1, column 2). A separator allows wider numbers
// (TDV 3-14). Anything else with trailing digits keeps them in Number.
func ParseSeat(raw string) (ParsedSeat, error) {
	s := strings.TrimSpace(raw)
	s = spaceRe.ReplaceAllString(s, " ")
	if s == "" {
		return ParsedSeat{}, fmt.Errorf("empty seat id")
	}

	m := seatRe.FindStringSubmatch(s)
	if m == nil {
		return ParsedSeat{}, fmt.Errorf("unable to parse seat id: %q", raw)
	}
	zone := strings.ToUpper(strings.TrimSpace(m[1]))
	digits := m[2]

	if m[3] != "" {
		row, errRow := strconv.Atoi(digits)
		col, errCol := strconv.Atoi(m[3])
		if errRow != nil || errCol != nil {
			return ParsedSeat{}, fmt.Errorf("unable to parse seat id: %q", raw)
		}
		return ParsedSeat{Zone: zone, Row: row, Col: col}, nil
	}

	n, err := strconv.Atoi(digits)
	if err != nil {
		return ParsedSeat{}, fmt.Errorf("unable to parse seat number in %q: %w", raw, err)
	}
	if zone != "" && len(digits) == 2 {
		return ParsedSeat{Zone: zone, Row: int(digits[0] - '0'), Col: int(digits[1] - '0')}, nil
	}
	return ParsedSeat{Zone: zone, Number: n}, nil
}
