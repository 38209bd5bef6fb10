package spend

import (
	"sort"
	"time"
)

// SeriesRow is one calendar month of a time series: a spend value per
// dimension value seen that month. Columns are sparse — a dimension value
// with no spend in a month is simply absent, never zero.
type SeriesRow struct {
	Month  string
	Values map[string]float64
}

// ToTimeSeries reshapes long-format rows into one SeriesRow per distinct
// month, sorted ascending by calendar month. A dimension value repeating
// within the same month overwrites the earlier value; the source data is
// pre-aggregated and duplicates indicate a re-export, where the later row
// wins.
func ToTimeSeries(rows []Row, spec DatasetSpec) []SeriesRow {
	byMonth := make(map[string]SeriesRow)
	for _, row := range rows {
		obs, ok := spec.Normalize(row)
		if !ok {
			continue
		}
		sr, exists := byMonth[obs.Month]
		if !exists {
			sr = SeriesRow{Month: obs.Month, Values: make(map[string]float64)}
		}
		sr.Values[obs.Value] = obs.Spend
		byMonth[obs.Month] = sr
	}

	series := make([]SeriesRow, 0, len(byMonth))
	for _, sr := range byMonth {
		series = append(series, sr)
	}
	sort.Slice(series, func(i, j int) bool {
		return lessMonth(series[i].Month, series[j].Month)
	})
	return series
}

// lessMonth compares two YYYY-MM keys chronologically, falling back to
// lexicographic order when either fails to parse. The fallback keeps the
// sort total instead of failing the whole series over one odd key.
func lessMonth(a, b string) bool {
	ta, errA := time.Parse("2006-01", a)
	tb, errB := time.Parse("2006-01", b)
	if errA != nil || errB != nil {
		return a < b
	}
	return ta.Before(tb)
}

// DropFutureMonths removes series rows whose end of month is strictly after
// now. Source exports sometimes carry forecast rows for the running or
// upcoming month; the charts only show completed data.
func DropFutureMonths(series []SeriesRow, now time.Time) []SeriesRow {
	kept := make([]SeriesRow, 0, len(series))
	for _, sr := range series {
		t, err := time.Parse("2006-01", sr.Month)
		if err != nil {
			continue
		}
		endOfMonth := t.AddDate(0, 1, -1)
		if endOfMonth.After(now) {
			continue
		}
		kept = append(kept, sr)
	}
	return kept
}

// SeriesValues returns the distinct dimension values present anywhere in the
// series, sorted.
func SeriesValues(series []SeriesRow) []string {
	seen := make(map[string]struct{})
	for _, sr := range series {
		for v := range sr.Values {
			seen[v] = struct{}{}
		}
	}
	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// TopSeriesValues returns the n dimension values with the highest total
// spend across the whole series, highest first. Chart consumers use this as
// the default line selection. Ties keep the sorted-name order.
func TopSeriesValues(series []SeriesRow, n int) []string {
	totals := make(map[string]float64)
	for _, sr := range series {
		for v, spend := range sr.Values {
			totals[v] += spend
		}
	}

	values := make([]string, 0, len(totals))
	for v := range totals {
		values = append(values, v)
	}
	sort.Strings(values)
	sort.SliceStable(values, func(i, j int) bool {
		return totals[values[i]] > totals[values[j]]
	})

	if n > 0 && len(values) > n {
		values = values[:n]
	}
	return values
}
