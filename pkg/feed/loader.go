// Package feed fetches and parses the upstream CSV exports that every
// dashboard dataset is built from.
package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hazyhaar/spendlens/pkg/spend"
)

const (
	maxAttempts = 4
	retryDelay  = 500 * time.Millisecond
)

// FetchError reports an exhausted fetch: every attempt against the resource
// failed. Status carries the last HTTP status, 0 on network errors.
type FetchError struct {
	Path   string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts (last status %d): %v",
		e.Path, maxAttempts, e.Status, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Loader downloads CSV resources relative to a base URL and parses them into
// tables. It implements spend.Fetcher.
type Loader struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	catalog *Catalog // optional; records fetch outcomes when set
	cache   *Cache   // optional; hit until flushed by a refresh
	now     func() time.Time
}

// NewLoader creates a loader for CSVs under baseURL. catalog may be nil.
func NewLoader(baseURL string, catalog *Catalog, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 2 * time.Minute},
		logger:  logger,
		catalog: catalog,
		now:     time.Now,
	}
}

// WithCache attaches a table cache. Cached paths skip the network until
// Flush.
func (l *Loader) WithCache(cache *Cache) *Loader {
	l.cache = cache
	return l
}

// Flush invalidates the attached cache, if any. The registry calls this at
// the start of every refresh cycle.
func (l *Loader) Flush() {
	if l.cache != nil {
		l.cache.Flush()
	}
}

// Fetch downloads and parses one CSV. Transient failures retry on a fixed
// delay; exhaustion returns a *FetchError. The request URL carries a
// millisecond timestamp parameter so no intermediary cache can serve a stale
// export between refresh cycles.
func (l *Loader) Fetch(ctx context.Context, path string) (*spend.Table, error) {
	if l.cache != nil {
		if table, ok := l.cache.Get(path); ok {
			return table, nil
		}
	}

	url := l.resourceURL(path)

	var lastErr error
	var lastStatus int
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
			l.logger.Debug("retrying fetch", "path", path, "attempt", attempt+1)
		}

		table, status, err := l.fetchOnce(ctx, url)
		if err == nil {
			if l.cache != nil {
				l.cache.Put(path, table)
			}
			l.recordFetch(path, status, len(table.Rows), "")
			return table, nil
		}
		lastErr, lastStatus = err, status
	}

	ferr := &FetchError{Path: path, Status: lastStatus, Err: lastErr}
	l.recordFetch(path, lastStatus, 0, ferr.Error())
	return nil, ferr
}

func (l *Loader) fetchOnce(ctx context.Context, url string) (*spend.Table, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	table, err := l.parseCSV(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return table, resp.StatusCode, nil
}

// resourceURL joins path to the base URL and appends the cache-buster.
func (l *Loader) resourceURL(path string) string {
	url := l.baseURL + "/" + strings.TrimLeft(path, "/")
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "t=" + strconv.FormatInt(l.now().UnixMilli(), 10)
}

// parseCSV reads a CSV stream into a Table. The first record is the header;
// malformed records are skipped, not fatal. Rows shorter than the header keep
// only the columns they have.
func (l *Loader) parseCSV(src io.Reader) (*spend.Table, error) {
	r := csv.NewReader(src)
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	table := &spend.Table{Columns: columns}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			l.logger.Warn("skipping malformed csv record", "error", err)
			continue
		}

		row := make(spend.Row, len(columns))
		for i, col := range columns {
			if i >= len(record) {
				break
			}
			row[col] = record[i]
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func (l *Loader) recordFetch(path string, status, rows int, errMsg string) {
	if l.catalog == nil {
		return
	}
	if err := l.catalog.UpdateFetch(path, status, rows, errMsg); err != nil {
		l.logger.Error("record fetch result", "path", path, "error", err)
	}
}
