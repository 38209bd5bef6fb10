package feed

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

const sampleCSV = "Publisher,Date,Spend_USD\nHulu,2024-01,100\nESPN,2024-01,300\n"

func TestFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/publisher.csv" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(sampleCSV))
	}))
	defer ts.Close()

	l := NewLoader(ts.URL, nil, testLogger())
	table, err := l.Fetch(context.Background(), "publisher.csv")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(table.Columns) != 3 || table.Columns[0] != "Publisher" {
		t.Errorf("Columns = %v, want [Publisher Date Spend_USD]", table.Columns)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(table.Rows))
	}
	if got := table.Rows[0]["Publisher"]; got != "Hulu" {
		t.Errorf("Rows[0][Publisher] = %q, want Hulu", got)
	}
	if got := table.Rows[1]["Spend_USD"]; got != "300" {
		t.Errorf("Rows[1][Spend_USD] = %q, want 300", got)
	}
}

func TestFetch_CacheBuster(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("t") == "" {
			t.Error("request missing cache-buster parameter")
		}
		w.Write([]byte(sampleCSV))
	}))
	defer ts.Close()

	l := NewLoader(ts.URL, nil, testLogger())
	if _, err := l.Fetch(context.Background(), "publisher.csv"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
}

func TestFetch_Retry(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(sampleCSV))
	}))
	defer ts.Close()

	l := NewLoader(ts.URL, nil, testLogger())
	if _, err := l.Fetch(context.Background(), "publisher.csv"); err != nil {
		t.Fatalf("Fetch with retries: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestFetch_AllFail(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	l := NewLoader(ts.URL, nil, testLogger())
	_, err := l.Fetch(context.Background(), "publisher.csv")

	var ferr *FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("Fetch error = %v, want *FetchError", err)
	}
	if ferr.Status != http.StatusServiceUnavailable {
		t.Errorf("Status = %d, want 503", ferr.Status)
	}
	if ferr.Path != "publisher.csv" {
		t.Errorf("Path = %q, want publisher.csv", ferr.Path)
	}
	if attempts != maxAttempts {
		t.Errorf("attempts = %d, want %d", attempts, maxAttempts)
	}
}

func TestFetch_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := NewLoader(ts.URL, nil, testLogger())
	if _, err := l.Fetch(ctx, "publisher.csv"); err == nil {
		t.Error("Fetch with cancelled context: want error")
	}
}

func TestFetch_QuotedFields(t *testing.T) {
	csv := "Brand (Leaf),Date,Spend_USD\n\"Venture, X\",2024-01,\"1,200\"\n"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(csv))
	}))
	defer ts.Close()

	l := NewLoader(ts.URL, nil, testLogger())
	table, err := l.Fetch(context.Background(), "brand.csv")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("len(Rows) = %d, want 1", len(table.Rows))
	}
	row := table.Rows[0]
	if row["Brand (Leaf)"] != "Venture, X" {
		t.Errorf("Brand (Leaf) = %q, want %q", row["Brand (Leaf)"], "Venture, X")
	}
	if row["Spend_USD"] != "1,200" {
		t.Errorf("Spend_USD = %q, want %q", row["Spend_USD"], "1,200")
	}
}

func TestFetch_ShortRowKeepsPrefix(t *testing.T) {
	csv := "Publisher,Date,Spend_USD\nHulu,2024-01\n"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(csv))
	}))
	defer ts.Close()

	l := NewLoader(ts.URL, nil, testLogger())
	table, err := l.Fetch(context.Background(), "publisher.csv")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("len(Rows) = %d, want 1", len(table.Rows))
	}
	row := table.Rows[0]
	if row["Publisher"] != "Hulu" || row["Date"] != "2024-01" {
		t.Errorf("row = %v, want Publisher and Date populated", row)
	}
	if _, ok := row["Spend_USD"]; ok {
		t.Errorf("row = %v, want Spend_USD absent", row)
	}
}

func TestFetch_RecordsCatalogOutcome(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleCSV))
	}))
	defer ts.Close()

	catalog := tempCatalog(t)
	if err := catalog.Seed(testSpecs()); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	l := NewLoader(ts.URL, catalog, testLogger())
	if _, err := l.Fetch(context.Background(), "publisher.csv"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	sources, err := catalog.ListSources()
	if err != nil {
		t.Fatalf("ListSources: %v", err)
	}
	for _, src := range sources {
		if src.Path != "publisher.csv" {
			continue
		}
		if src.LastStatus == nil || *src.LastStatus != 200 {
			t.Errorf("last_status = %v, want 200", src.LastStatus)
		}
		if src.RowCount == nil || *src.RowCount != 2 {
			t.Errorf("row_count = %v, want 2", src.RowCount)
		}
		return
	}
	t.Fatal("publisher.csv not found in catalog")
}
