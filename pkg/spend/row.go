package spend

import (
	"strconv"
	"strings"
)

// Row is a single CSV record keyed by header name. Values are kept as the
// raw strings the parser produced; coercion happens at the point of use.
type Row map[string]string

// Table is one parsed CSV resource: the header in file order plus its rows.
type Table struct {
	Columns []string
	Rows    []Row
}

// First returns the first non-empty value among the named columns, trimmed.
// Datasets exported at different times disagree on column naming
// (e.g. "Brand_Leaf" vs "Brand (Leaf)"), so lookups take alias lists.
func (r Row) First(columns ...string) string {
	for _, c := range columns {
		if v := strings.TrimSpace(r[c]); v != "" {
			return v
		}
	}
	return ""
}

// Number coerces the named column to a float64.
// Returns ok=false for missing or non-numeric values.
func (r Row) Number(column string) (float64, bool) {
	v := strings.TrimSpace(r[column])
	if v == "" {
		return 0, false
	}
	// Exported spend columns occasionally carry thousands separators.
	v = strings.ReplaceAll(v, ",", "")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
