package spend

// Selector keeps the two cross-filtered axes of a top-creatives view — the
// selected month and the selected dimension value — mutually consistent.
//
// Invariants after every transition, whenever the corresponding set is
// non-empty:
//
//	Month ∈ AvailableMonths()   (months with ≥1 entry for Value)
//	Value ∈ AvailableValues()   (values with ≥1 entry for Month)
//
// Transitions are synchronous; callers serialize them (the registry holds
// its lock across a transition).
type Selector struct {
	creatives Creatives
	month     string
	value     string
}

// NewSelector builds a selector positioned at the defaults for a fresh data
// load: the most recent month, and the dimension value with the highest
// all-time spend. An empty dataset yields an empty selection, which renders
// as a "no data" state rather than an error.
func NewSelector(c Creatives) *Selector {
	s := &Selector{}
	s.Reset(c)
	return s
}

// Reset points the selector at new data and restores default selections.
func (s *Selector) Reset(c Creatives) {
	s.creatives = c
	s.month = ""
	s.value = ""
	if months := c.Months(); len(months) > 0 {
		s.month = months[0]
	}
	s.value = c.DefaultValue()
	s.reconcile()
}

// Month returns the selected month key.
func (s *Selector) Month() string { return s.month }

// Value returns the selected dimension value.
func (s *Selector) Value() string { return s.value }

// AvailableMonths returns the months valid for the current value, most
// recent first. With no value selected, every month is available.
func (s *Selector) AvailableMonths() []string {
	if s.value == "" {
		return s.creatives.Months()
	}
	return s.creatives.MonthsFor(s.value)
}

// AvailableValues returns the dimension values valid for the current month,
// sorted. With no month selected, every value is available.
func (s *Selector) AvailableValues() []string {
	if s.month == "" {
		return s.creatives.Values()
	}
	return s.creatives.ValuesFor(s.month)
}

// OnMonthChange selects a new month and reports whether the transition was
// applied. A month with no entries at all is rejected, leaving the selection
// untouched. If the current value has no entries in the new month, the value
// falls back to the first available one in sorted order.
func (s *Selector) OnMonthChange(month string) bool {
	values := s.creatives.ValuesFor(month)
	if len(values) == 0 {
		return false
	}
	s.month = month
	if !contains(values, s.value) {
		s.value = values[0]
	}
	return true
}

// OnValueChange selects a new dimension value and reports whether the
// transition was applied. A value with no entries at all is rejected, leaving
// the selection untouched. If the current month has no entries for the new
// value, the month falls back to the most recent available one.
func (s *Selector) OnValueChange(value string) bool {
	months := s.creatives.MonthsFor(value)
	if len(months) == 0 {
		return false
	}
	s.value = value
	if !contains(months, s.month) {
		s.month = months[0]
	}
	return true
}

// Revalidate swaps in freshly loaded data without discarding a selection the
// user already made: a still-valid (month, value) pair survives the refresh
// untouched, an invalidated axis is corrected, and only a fully stale
// selection resets to the defaults.
func (s *Selector) Revalidate(c Creatives) {
	month, value := s.month, s.value
	s.creatives = c

	switch {
	case value != "" && contains(c.ValuesFor(month), value):
		// Selection survives as-is.
	case value != "" && len(c.MonthsFor(value)) > 0:
		s.OnValueChange(value)
	case month != "" && len(c.ValuesFor(month)) > 0:
		s.OnMonthChange(month)
	default:
		s.Reset(c)
	}
}

// TopN returns the top-n entries for the current selection.
func (s *Selector) TopN(n int) []CreativeEntry {
	if s.month == "" || s.value == "" {
		return nil
	}
	return s.creatives.TopN(s.value, s.month, n)
}

// Empty reports whether the selector has nothing to select from.
func (s *Selector) Empty() bool {
	return len(s.creatives) == 0
}

// reconcile re-establishes the invariants after a Reset. The default value
// (highest all-time spend) may have no entries in the most recent month; the
// month axis wins and the value falls back.
func (s *Selector) reconcile() {
	if s.month == "" {
		return
	}
	if !contains(s.creatives.ValuesFor(s.month), s.value) {
		s.OnMonthChange(s.month)
	}
}

func contains(slice []string, v string) bool {
	for _, s := range slice {
		if s == v {
			return true
		}
	}
	return false
}
