package spend

import "sort"

// CreativeEntry is one creative placement: a dimension value, the month it
// ran, what it cost (raw and as a display label), and the link to the
// creative asset.
type CreativeEntry struct {
	Value      string  `json:"value"`
	Month      string  `json:"month"`
	Spend      float64 `json:"spend_usd"`
	SpendLabel string  `json:"spend_label"`
	Link       string  `json:"link"`
}

// Creatives groups a dataset's entries by dimension value, preserving source
// order within each group.
type Creatives map[string][]CreativeEntry

// BuildCreatives normalizes rows into a Creatives index. Rows missing a
// dimension value, month, spend, or link are dropped.
func BuildCreatives(rows []Row, spec DatasetSpec) Creatives {
	c := make(Creatives)
	for _, row := range rows {
		obs, ok := spec.Normalize(row)
		if !ok {
			continue
		}
		c[obs.Value] = append(c[obs.Value], CreativeEntry{
			Value:      obs.Value,
			Month:      obs.Month,
			Spend:      obs.Spend,
			SpendLabel: FormatUSD(obs.Spend),
			Link:       obs.Link,
		})
	}
	return c
}

// TopN returns the n highest-spend entries for a dimension value in a month,
// spend descending. Equal spends keep insertion order. No entries for the
// combination is a normal, displayable empty result.
func (c Creatives) TopN(value, month string, n int) []CreativeEntry {
	var matched []CreativeEntry
	for _, e := range c[value] {
		if e.Month == month {
			matched = append(matched, e)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Spend > matched[j].Spend
	})
	if n > 0 && len(matched) > n {
		matched = matched[:n]
	}
	return matched
}

// DefaultValue returns the dimension value with the highest all-time spend,
// the sensible initial selection after a data load. Ties resolve to the
// first value in sorted-key order. Empty Creatives yield "".
func (c Creatives) DefaultValue() string {
	var best string
	var bestTotal float64
	for _, value := range c.Values() {
		var total float64
		for _, e := range c[value] {
			total += e.Spend
		}
		if best == "" || total > bestTotal {
			best = value
			bestTotal = total
		}
	}
	return best
}

// Values returns all dimension values in sorted order.
func (c Creatives) Values() []string {
	values := make([]string, 0, len(c))
	for v := range c {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// Months returns all months present in the dataset, most recent first.
func (c Creatives) Months() []string {
	seen := make(map[string]struct{})
	for _, entries := range c {
		for _, e := range entries {
			seen[e.Month] = struct{}{}
		}
	}
	months := make([]string, 0, len(seen))
	for m := range seen {
		months = append(months, m)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))
	return months
}

// ValuesFor returns the dimension values with at least one entry in the
// given month, sorted.
func (c Creatives) ValuesFor(month string) []string {
	var values []string
	for _, v := range c.Values() {
		for _, e := range c[v] {
			if e.Month == month {
				values = append(values, v)
				break
			}
		}
	}
	return values
}

// MonthsFor returns the months with at least one entry for the given
// dimension value, most recent first.
func (c Creatives) MonthsFor(value string) []string {
	seen := make(map[string]struct{})
	for _, e := range c[value] {
		seen[e.Month] = struct{}{}
	}
	months := make([]string, 0, len(seen))
	for m := range seen {
		months = append(months, m)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))
	return months
}
