package manifest

import (
	"sort"
	"strings"
)

// MatchesNormalized reports whether query occurs, case-insensitively, in the
// space-joined values of every field except the row number. An empty query
// matches all rows.
func MatchesNormalized(r NormalizedRow, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	values := make([]string, 0, len(Fields))
	for _, f := range Fields {
		values = append(values, r.Value(f))
	}
	return strings.Contains(strings.ToLower(strings.Join(values, " ")), q)
}

// MatchesRaw is MatchesNormalized for raw rows. Cell values are joined in
// sorted header order so the result does not depend on map iteration.
func MatchesRaw(r RawRow, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	headers := make([]string, 0, len(r.Raw))
	for h := range r.Raw {
		headers = append(headers, h)
	}
	sort.Strings(headers)

	values := make([]string, len(headers))
	for i, h := range headers {
		values[i] = r.Raw[h]
	}
	return strings.Contains(strings.ToLower(strings.Join(values, " ")), q)
}

// FilterRaw returns the raw rows matching query.
func FilterRaw(rows []RawRow, query string) []RawRow {
	if strings.TrimSpace(query) == "" {
		return rows
	}
	out := make([]RawRow, 0, len(rows))
	for _, r := range rows {
		if MatchesRaw(r, query) {
			out = append(out, r)
		}
	}
	return out
}
