package feed

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/spendlens/pkg/spend"
)

// Source is one row of the dataset_sources table: where a dataset's CSV
// lives and how its last fetch went.
type Source struct {
	DatasetID   string
	Description string
	Kind        string
	Path        string
	LastFetch   *int64
	LastStatus  *int
	LastError   *string
	RowCount    *int
	UpdatedAt   int64
}

// Catalog manages the dataset_sources SQLite table. It is the durable record
// of which CSVs the service pulls and when each was last reachable.
type Catalog struct {
	db *sql.DB
}

// OpenCatalog opens (or creates) the SQLite database at path and ensures the
// dataset_sources table exists.
func OpenCatalog(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}

	const ddl = `CREATE TABLE IF NOT EXISTS dataset_sources (
		dataset_id   TEXT PRIMARY KEY,
		description  TEXT NOT NULL,
		kind         TEXT NOT NULL,
		path         TEXT NOT NULL,
		last_fetch   INTEGER,
		last_status  INTEGER,
		last_error   TEXT,
		row_count    INTEGER,
		updated_at   INTEGER NOT NULL
	)`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("create dataset_sources table: %w", err)
	}

	return &Catalog{db: db}, nil
}

// Close closes the SQLite connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Seed inserts default rows for each dataset spec (INSERT OR IGNORE; existing
// rows are left untouched so manual path overrides survive restarts).
func (c *Catalog) Seed(specs []spend.DatasetSpec) error {
	const q = `INSERT OR IGNORE INTO dataset_sources
		(dataset_id, description, kind, path, updated_at)
		VALUES (?, ?, ?, ?, ?)`

	now := time.Now().Unix()
	for _, s := range specs {
		if _, err := c.db.Exec(q, s.ID, s.Description, s.Kind, s.Path, now); err != nil {
			return fmt.Errorf("seed %s: %w", s.ID, err)
		}
	}
	return nil
}

// GetPath returns the current CSV path for a dataset ID.
func (c *Catalog) GetPath(datasetID string) (string, error) {
	var path string
	err := c.db.QueryRow(`SELECT path FROM dataset_sources WHERE dataset_id = ?`, datasetID).Scan(&path)
	if err != nil {
		return "", fmt.Errorf("get path for %s: %w", datasetID, err)
	}
	return path, nil
}

// SetPath overrides the CSV path for a dataset and records the change.
func (c *Catalog) SetPath(datasetID, path string) error {
	res, err := c.db.Exec(
		`UPDATE dataset_sources SET path = ?, updated_at = ? WHERE dataset_id = ?`,
		path, time.Now().Unix(), datasetID,
	)
	if err != nil {
		return fmt.Errorf("set path for %s: %w", datasetID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("dataset %s not found in dataset_sources", datasetID)
	}
	return nil
}

// UpdateFetch persists the outcome of a fetch attempt, keyed by path since
// the loader does not know dataset IDs.
func (c *Catalog) UpdateFetch(path string, status, rowCount int, fetchErr string) error {
	now := time.Now().Unix()
	var errPtr *string
	if fetchErr != "" {
		errPtr = &fetchErr
	}
	_, err := c.db.Exec(
		`UPDATE dataset_sources SET last_fetch = ?, last_status = ?, last_error = ?, row_count = ?
		WHERE path = ?`,
		now, status, errPtr, rowCount, path,
	)
	if err != nil {
		return fmt.Errorf("update fetch for %s: %w", path, err)
	}
	return nil
}

// ListSources returns all rows from dataset_sources ordered by dataset_id.
func (c *Catalog) ListSources() ([]Source, error) {
	rows, err := c.db.Query(`SELECT dataset_id, description, kind, path,
		last_fetch, last_status, last_error, row_count, updated_at
		FROM dataset_sources ORDER BY dataset_id`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var src Source
		if err := rows.Scan(&src.DatasetID, &src.Description, &src.Kind, &src.Path,
			&src.LastFetch, &src.LastStatus, &src.LastError, &src.RowCount, &src.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}
