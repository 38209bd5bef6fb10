package spend

import (
	"math"
	"regexp"
	"strings"
	"time"
)

// Observation is one accepted data point: a dimension value, the calendar
// month it belongs to, its spend, and (for creative datasets) a usable link.
// Every dataset schema reduces to this shape.
type Observation struct {
	Value string
	Month string
	Spend float64
	Link  string
}

var monthKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// ValidMonthKey reports whether s is a real calendar month in YYYY-MM form.
// "2024-13" matches the pattern but is not a month.
func ValidMonthKey(s string) bool {
	if !monthKeyPattern.MatchString(s) {
		return false
	}
	_, err := time.Parse("2006-01", s)
	return err == nil
}

// Normalize extracts an Observation from a raw row, or reports ok=false when
// any required field is missing or malformed. Rejection is the expected path
// for sparse source data, not an error: callers drop the row and move on.
// Normalizing the same row twice yields the same result.
func (s DatasetSpec) Normalize(row Row) (Observation, bool) {
	value := row.First(s.DimensionColumns...)
	if value == "" {
		return Observation{}, false
	}

	month := row.First("Date")
	if !ValidMonthKey(month) {
		return Observation{}, false
	}

	// Only positive spend counts: the time series is sparse and a missing
	// column means "no spend that month", so zero is absence, and negative
	// amounts have no meaning in this data.
	amount, ok := row.Number(s.ValueColumn)
	if !ok || amount <= 0 || math.IsNaN(amount) {
		return Observation{}, false
	}

	obs := Observation{Value: value, Month: month, Spend: amount}

	if s.NeedsLink() {
		link := NormalizeLink(row[s.LinkColumn])
		if link == "" {
			return Observation{}, false
		}
		obs.Link = link
	}

	return obs, true
}

var (
	schemePattern     = regexp.MustCompile(`(?i)^https?://`)
	whitespacePattern = regexp.MustCompile(`\s`)
)

// NormalizeLink cleans a creative URL the way the source data needs it:
// trims whitespace, percent-encodes embedded spaces, and defaults the
// scheme to https. Returns "" for links that are empty after trimming.
func NormalizeLink(raw string) string {
	link := strings.TrimSpace(raw)
	if link == "" {
		return ""
	}
	link = whitespacePattern.ReplaceAllString(link, "%20")
	if !schemePattern.MatchString(link) {
		link = "https://" + link
	}
	return link
}
