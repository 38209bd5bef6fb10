package spend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultTopN is the gallery size for top-creative views.
const DefaultTopN = 3

var (
	// ErrNotFound marks lookups for dataset IDs the registry does not serve.
	ErrNotFound = errors.New("dataset not found")
	// ErrUnavailable is the public face of a dataset that never loaded. The
	// underlying fetch failure stays in the logs; clients get no upstream
	// status codes.
	ErrUnavailable = errors.New("data temporarily unavailable")
)

// Fetcher loads one CSV resource. Implemented by feed.Loader; the registry
// stays independent of the transport so tests can feed it tables directly.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (*Table, error)
}

// Dataset is one fully built dataset: the raw table (kept for search and
// summaries) plus the chart-ready structures derived from it.
type Dataset struct {
	Spec      DatasetSpec
	Table     *Table
	Summary   Summary
	Series    []SeriesRow // kind "series"
	TopValues []string    // kind "series": default chart selection
	Creatives Creatives   // kind "creatives"
	Selector  *Selector   // kind "creatives"
	LoadedAt  time.Time
	LoadErr   error // last fetch failure; stale data stays served
}

// SelectorState is a snapshot of a dataset's cross-filter state, shaped for
// the frontend selectors and the top-3 gallery they drive.
type SelectorState struct {
	Month           string          `json:"month"`
	MonthLabel      string          `json:"month_label,omitempty"`
	Value           string          `json:"value"`
	AvailableMonths []string        `json:"available_months"`
	AvailableValues []string        `json:"available_values"`
	Top             []CreativeEntry `json:"top"`
	Empty           bool            `json:"empty"`
}

// SearchHit is one row matched by a search query, tagged with the dataset it
// came from.
type SearchHit struct {
	Dataset string `json:"dataset"`
	Row     Row    `json:"row"`
}

// DatasetInfo is the public metadata for one dataset.
type DatasetInfo struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
	Path        string `json:"path"`
	Rows        int    `json:"rows"`
	Months      int    `json:"months"`
	Stale       bool   `json:"stale,omitempty"`
}

// Registry owns every loaded dataset and serves all queries against them.
// One instance lives for the whole process; there is no implicit global.
type Registry struct {
	mu       sync.RWMutex
	fetcher  Fetcher
	specs    []DatasetSpec
	datasets map[string]*Dataset
	logger   *slog.Logger
	now      func() time.Time
}

// NewRegistry creates a registry for the given dataset specs. Specs must
// already be validated.
func NewRegistry(fetcher Fetcher, specs []DatasetSpec, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		fetcher:  fetcher,
		specs:    specs,
		datasets: make(map[string]*Dataset),
		logger:   logger,
		now:      time.Now,
	}
}

// Load fetches and builds every dataset. Datasets are independent: they load
// concurrently, each with its own retry budget, and one failing does not
// abort the others. Load only errors when nothing at all could be loaded.
func (r *Registry) Load(ctx context.Context) error {
	type result struct {
		spec  DatasetSpec
		table *Table
		err   error
	}

	results := make([]result, len(r.specs))
	var wg sync.WaitGroup
	for i, spec := range r.specs {
		wg.Add(1)
		go func(i int, spec DatasetSpec) {
			defer wg.Done()
			table, err := r.fetcher.Fetch(ctx, spec.Path)
			results[i] = result{spec: spec, table: table, err: err}
		}(i, spec)
	}
	wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	loaded := 0
	for _, res := range results {
		if res.err != nil {
			r.logger.Warn("dataset load failed", "id", res.spec.ID, "path", res.spec.Path, "error", res.err)
			if prev, ok := r.datasets[res.spec.ID]; ok {
				prev.LoadErr = res.err
				loaded++ // stale data still serves
			} else {
				r.datasets[res.spec.ID] = &Dataset{Spec: res.spec, LoadErr: res.err}
			}
			continue
		}
		r.installLocked(res.spec, res.table)
		loaded++
	}

	if loaded == 0 {
		return fmt.Errorf("no dataset could be loaded")
	}
	return nil
}

// Refresh is Load run again: the fetch cache is flushed, the pipeline
// re-executes per dataset, and selectors revalidate instead of resetting, so
// an in-progress user selection survives when the new data still supports it.
func (r *Registry) Refresh(ctx context.Context) {
	if f, ok := r.fetcher.(interface{ Flush() }); ok {
		f.Flush()
	}
	if err := r.Load(ctx); err != nil {
		r.logger.Error("refresh failed", "error", err)
	}
}

// installLocked rebuilds one dataset from a fresh table. Caller holds r.mu.
func (r *Registry) installLocked(spec DatasetSpec, table *Table) {
	ds := &Dataset{
		Spec:     spec,
		Table:    table,
		Summary:  Summarize(table),
		LoadedAt: r.now(),
	}

	switch spec.Kind {
	case KindSeries:
		series := DropFutureMonths(ToTimeSeries(table.Rows, spec), r.now())
		ds.Series = series
		ds.TopValues = TopSeriesValues(series, 5)
	case KindCreatives:
		ds.Creatives = BuildCreatives(table.Rows, spec)
		if prev, ok := r.datasets[spec.ID]; ok && prev.Selector != nil {
			prev.Selector.Revalidate(ds.Creatives)
			ds.Selector = prev.Selector
		} else {
			ds.Selector = NewSelector(ds.Creatives)
		}
	}

	r.datasets[spec.ID] = ds
	r.logger.Info("dataset loaded", "id", spec.ID, "rows", len(table.Rows))
}

func (r *Registry) datasetLocked(id string) (*Dataset, error) {
	ds, ok := r.datasets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if ds.Table == nil {
		return nil, fmt.Errorf("dataset %s: %w", id, ErrUnavailable)
	}
	return ds, nil
}

// List returns metadata for every dataset, sorted by ID.
func (r *Registry) List() []DatasetInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]DatasetInfo, 0, len(r.datasets))
	for _, ds := range r.datasets {
		info := DatasetInfo{
			ID:          ds.Spec.ID,
			Description: ds.Spec.Description,
			Kind:        ds.Spec.Kind,
			Path:        ds.Spec.Path,
			Stale:       ds.LoadErr != nil,
		}
		if ds.Table != nil {
			info.Rows = len(ds.Table.Rows)
		}
		switch ds.Spec.Kind {
		case KindSeries:
			info.Months = len(ds.Series)
		case KindCreatives:
			info.Months = len(ds.Creatives.Months())
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Series returns the chart-ready time series for a series dataset.
func (r *Registry) Series(id string) ([]SeriesRow, []string, []string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ds, err := r.datasetLocked(id)
	if err != nil {
		return nil, nil, nil, err
	}
	if ds.Spec.Kind != KindSeries {
		return nil, nil, nil, fmt.Errorf("dataset %s is not a series dataset", id)
	}
	return ds.Series, SeriesValues(ds.Series), ds.TopValues, nil
}

// Summary returns the summary statistics for a dataset.
func (r *Registry) Summary(id string) (Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ds, err := r.datasetLocked(id)
	if err != nil {
		return Summary{}, err
	}
	return ds.Summary, nil
}

// Top returns the n highest-spend creatives for an explicit month and value.
// Empty month or value fall back to the dataset's current selector state.
func (r *Registry) Top(id, month, value string, n int) ([]CreativeEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ds, err := r.creativesLocked(id)
	if err != nil {
		return nil, err
	}
	if month == "" {
		month = ds.Selector.Month()
	}
	if value == "" {
		value = ds.Selector.Value()
	}
	if n <= 0 {
		n = DefaultTopN
	}
	return ds.Creatives.TopN(value, month, n), nil
}

// SelectorState snapshots the cross-filter state of a creatives dataset.
func (r *Registry) SelectorState(id string) (SelectorState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ds, err := r.creativesLocked(id)
	if err != nil {
		return SelectorState{}, err
	}
	return selectorSnapshot(ds.Selector), nil
}

// SelectMonth runs the month-change transition on a dataset's selector and
// returns the resulting state. Months the dataset has no entries for are
// rejected, so a bad request can never wedge the shared selector.
func (r *Registry) SelectMonth(id, month string) (SelectorState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ds, err := r.creativesLocked(id)
	if err != nil {
		return SelectorState{}, err
	}
	if !ds.Selector.OnMonthChange(month) {
		return SelectorState{}, fmt.Errorf("dataset %s has no entries for month %q", id, month)
	}
	return selectorSnapshot(ds.Selector), nil
}

// SelectValue runs the value-change transition on a dataset's selector and
// returns the resulting state. Values the dataset has no entries for are
// rejected, so a bad request can never wedge the shared selector.
func (r *Registry) SelectValue(id, value string) (SelectorState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ds, err := r.creativesLocked(id)
	if err != nil {
		return SelectorState{}, err
	}
	if !ds.Selector.OnValueChange(value) {
		return SelectorState{}, fmt.Errorf("dataset %s has no entries for value %q", id, value)
	}
	return selectorSnapshot(ds.Selector), nil
}

func (r *Registry) creativesLocked(id string) (*Dataset, error) {
	ds, err := r.datasetLocked(id)
	if err != nil {
		return nil, err
	}
	if ds.Spec.Kind != KindCreatives {
		return nil, fmt.Errorf("dataset %s is not a creatives dataset", id)
	}
	return ds, nil
}

func selectorSnapshot(s *Selector) SelectorState {
	state := SelectorState{
		Month:           s.Month(),
		Value:           s.Value(),
		AvailableMonths: s.AvailableMonths(),
		AvailableValues: s.AvailableValues(),
		Top:             s.TopN(DefaultTopN),
		Empty:           s.Empty(),
	}
	if state.Month != "" {
		state.MonthLabel = FormatMonth(state.Month)
	}
	if state.Top == nil {
		state.Top = []CreativeEntry{}
	}
	return state
}

// Search matches a query case-insensitively (and accent-insensitively)
// against every field of every row across all datasets, tagging hits with
// their dataset ID. Datasets are scanned in sorted order for deterministic
// results. limit <= 0 means unlimited. A blank or whitespace-only query
// matches nothing; returning every row of every dataset is never useful
// server-side.
func (r *Registry) Search(query string, limit int) []SearchHit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := Fold(strings.TrimSpace(query))
	hits := []SearchHit{}
	if needle == "" {
		return hits
	}

	ids := make([]string, 0, len(r.datasets))
	for id := range r.datasets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		ds := r.datasets[id]
		if ds.Table == nil {
			continue
		}
		for _, row := range ds.Table.Rows {
			if rowMatches(row, needle) {
				hits = append(hits, SearchHit{Dataset: id, Row: row})
				if limit > 0 && len(hits) >= limit {
					return hits
				}
			}
		}
	}
	return hits
}

func rowMatches(row Row, needle string) bool {
	for _, v := range row {
		if v == "" {
			continue
		}
		if strings.Contains(Fold(v), needle) {
			return true
		}
	}
	return false
}

// Counts returns the number of loaded datasets and total rows, for health
// reporting.
func (r *Registry) Counts() (datasets, rows int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ds := range r.datasets {
		if ds.Table == nil {
			continue
		}
		datasets++
		rows += len(ds.Table.Rows)
	}
	return datasets, rows
}
