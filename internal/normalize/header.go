package normalize

import "strings"

// GroupedHeaders builds column keys from a two-row header. The group label in
// groupRow carries forward across blank cells; a column's key is
// "group_field" while a group is active and "field" otherwise. Columns with a
// blank field cell get an empty key.
func GroupedHeaders(groupRow, fieldRow []string) []string {
	n := len(fieldRow)
	if len(groupRow) > n {
		n = len(groupRow)
	}

	keys := make([]string, n)
	current := ""
	for i := 0; i < n; i++ {
		if g := strings.TrimSpace(cell(groupRow, i)); g != "" {
			current = g
		}
		field := strings.TrimSpace(cell(fieldRow, i))
		switch {
		case field == "":
			keys[i] = ""
		case current != "":
			keys[i] = current + "_" + field
		default:
			keys[i] = field
		}
	}
	return keys
}

// Row is one data row keyed by header.
type Row map[string]string

// NewRow zips headers with cells. Empty header keys are dropped; when a key
// repeats, the first non-empty cell wins.
func NewRow(headers, cells []string) Row {
	r := make(Row, len(headers))
	for i, h := range headers {
		if h == "" {
			continue
		}
		v := strings.TrimSpace(cell(cells, i))
		if existing, ok := r[h]; ok && existing != "" {
			continue
		}
		r[h] = v
	}
	return r
}

// Get returns the cell for an exact key.
func (r Row) Get(key string) string {
	return r[key]
}

// First returns the first non-empty cell among keys.
func (r Row) First(keys ...string) string {
	for _, k := range keys {
		if v := r[k]; v != "" {
			return v
		}
	}
	return ""
}

// Lookup resolves a grouped field in two steps: the prefixed key
// "group_field" first, then the bare "field". The first non-empty value wins,
// so rows exported without the group row still resolve.
func (r Row) Lookup(group, field string) string {
	if group != "" {
		if v := r[group+"_"+field]; v != "" {
			return v
		}
	}
	return r[field]
}

// LookupAny applies Lookup to each field alias in order.
func (r Row) LookupAny(group string, fields ...string) string {
	for _, f := range fields {
		if v := r.Lookup(group, f); v != "" {
			return v
		}
	}
	return ""
}

// InGroup resolves only the prefixed key, with no bare fallback.
func (r Row) InGroup(group string, fields ...string) string {
	for _, f := range fields {
		if v := r[group+"_"+f]; v != "" {
			return v
		}
	}
	return ""
}

// IsBlank reports whether every cell is empty.
func IsBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cell(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return cells[i]
}
