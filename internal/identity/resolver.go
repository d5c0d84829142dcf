// Package identity turns loosely labelled roster rows into canonical attendees
// and matches scanned credentials against them.
package identity

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"seat-checkin-backend/internal/model"
)

// Row is one raw roster row keyed by whatever header the source used.
type Row map[string]any

// Field names a logical attendee field.
type Field string

const (
	FieldID          Field = "id"
	FieldDisplayName Field = "display_name"
	FieldGroup       Field = "group"
	FieldSeat        Field = "seat"
	FieldCredential  Field = "credential"
	FieldPhoto       Field = "photo"
)

// Fields lists every logical field in resolution order.
var Fields = []Field{FieldID, FieldDisplayName, FieldGroup, FieldSeat, FieldCredential, FieldPhoto}

// Aliases maps a logical field to the header spellings tried in priority order.
type Aliases map[Field][]string

// DefaultAliases covers the header spellings seen in real roster exports.
var DefaultAliases = Aliases{
	FieldID:          {"id", "ID", "Id", "attendeeId"},
	FieldDisplayName: {"hoTen", "Họ và tên", "Họ tên", "Họ và Tên", "displayName", "name", "Name"},
	FieldGroup:       {"phong", "Phòng", "Phòng ban", "Tên đơn vị", "Đơn vị", "groupLabel", "group", "department"},
	FieldSeat:        {"idCho", "ID chỗ", "ID Chỗ", "id chỗ", "seatId", "seat"},
	FieldCredential:  {"maThe", "Mã thẻ", "Mã Thẻ", "Mã Thề", "Ma The", "credentialCode", "cardCode"},
	FieldPhoto:       {"image", "Image", "Ảnh", "ảnh", "ẢNH", "photoRef", "photo"},
}

// Extend returns a copy of a with extra aliases appended after the existing ones.
// Unknown field names are ignored.
func (a Aliases) Extend(extra map[string][]string) Aliases {
	out := make(Aliases, len(a))
	for f, names := range a {
		out[f] = append([]string(nil), names...)
	}
	for name, more := range extra {
		f := Field(name)
		if _, ok := out[f]; !ok {
			continue
		}
		out[f] = append(out[f], more...)
	}
	return out
}

// Resolver normalizes rows using an alias table.
type Resolver struct {
	aliases Aliases
}

// NewResolver creates a resolver. A nil table falls back to DefaultAliases.
func NewResolver(aliases Aliases) *Resolver {
	if aliases == nil {
		aliases = DefaultAliases
	}
	normalized := make(Aliases, len(aliases))
	for f, names := range aliases {
		for _, n := range names {
			normalized[f] = append(normalized[f], normalizeKey(n))
		}
	}
	return &Resolver{aliases: normalized}
}

// Resolve maps a raw row to an Attendee. Missing fields become empty strings.
func (r *Resolver) Resolve(row Row) model.Attendee {
	headers := make([]string, 0, len(row))
	for k := range row {
		headers = append(headers, k)
	}
	sort.Strings(headers)

	// When two headers normalize to the same key, one already in normalized
	// form wins; otherwise the lowest header in byte order does.
	keyed := make(map[string]any, len(row))
	exact := make(map[string]bool, len(row))
	for _, k := range headers {
		nk := normalizeKey(k)
		isExact := k == nk
		if _, dup := keyed[nk]; !dup || (isExact && !exact[nk]) {
			keyed[nk] = row[k]
			exact[nk] = isExact
		}
	}

	return model.Attendee{
		ID:             r.lookup(keyed, FieldID),
		DisplayName:    r.lookup(keyed, FieldDisplayName),
		GroupLabel:     r.lookup(keyed, FieldGroup),
		SeatID:         r.lookup(keyed, FieldSeat),
		CredentialCode: r.lookup(keyed, FieldCredential),
		PhotoRef:       r.lookup(keyed, FieldPhoto),
	}
}

func (r *Resolver) lookup(keyed map[string]any, f Field) string {
	for _, alias := range r.aliases[f] {
		if v, ok := keyed[alias]; ok {
			if s := Stringify(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// Resolve normalizes a row with the default alias table.
func Resolve(row Row) model.Attendee {
	return defaultResolver.Resolve(row)
}

var defaultResolver = NewResolver(DefaultAliases)

// MatchByCredential finds the attendee whose credential equals code after trimming.
// Matching is case sensitive. When credentials repeat, the first attendee in
// roster order wins.
func MatchByCredential(code string, attendees []model.Attendee) (model.Attendee, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return model.Attendee{}, false
	}
	for _, a := range attendees {
		if strings.TrimSpace(a.CredentialCode) == code {
			return a, true
		}
	}
	return model.Attendee{}, false
}

// Stringify renders spreadsheet-ish cell values as trimmed text.
// Integral floats drop their fraction so 1024.0 becomes "1024".
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return Stringify(float64(t))
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// normalizeKey composes Unicode so NFD headers from some spreadsheet tools
// match the NFC aliases.
func normalizeKey(k string) string {
	return norm.NFC.String(strings.TrimSpace(k))
}
