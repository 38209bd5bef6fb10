package spend

// FieldStats holds the aggregate statistics for one numeric column.
type FieldStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	Sum float64 `json:"sum"`
}

// Summary describes a dataset: row count, column list, and per-column
// statistics for every column whose values coerce to numbers.
type Summary struct {
	Count        int                   `json:"count"`
	Fields       []string              `json:"fields"`
	NumericStats map[string]FieldStats `json:"numeric_stats,omitempty"`
}

// Summarize computes summary statistics over a parsed table. The schema is
// taken from the header and assumed uniform; individual values that fail
// numeric coercion are skipped for that column rather than rejecting the
// whole row. An empty table produces an empty-shaped summary.
func Summarize(table *Table) Summary {
	s := Summary{Fields: []string{}}
	if table == nil || len(table.Rows) == 0 {
		return s
	}

	s.Count = len(table.Rows)
	s.Fields = append(s.Fields, table.Columns...)
	s.NumericStats = make(map[string]FieldStats)

	for _, field := range table.Columns {
		// A column is numeric when its first row coerces; this mirrors how
		// the dashboard sniffs schemas and keeps the pass cheap.
		if _, ok := table.Rows[0].Number(field); !ok {
			continue
		}

		var stats FieldStats
		var n int
		for _, row := range table.Rows {
			v, ok := row.Number(field)
			if !ok {
				continue
			}
			if n == 0 || v < stats.Min {
				stats.Min = v
			}
			if n == 0 || v > stats.Max {
				stats.Max = v
			}
			stats.Sum += v
			n++
		}
		if n > 0 {
			stats.Avg = stats.Sum / float64(n)
			s.NumericStats[field] = stats
		}
	}

	if len(s.NumericStats) == 0 {
		s.NumericStats = nil
	}
	return s
}
