package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/spendlens/pkg/auth"
	"github.com/hazyhaar/spendlens/pkg/spend"
)

// stubFetcher serves canned tables keyed by path.
type stubFetcher map[string]*spend.Table

func (f stubFetcher) Fetch(_ context.Context, path string) (*spend.Table, error) {
	table, ok := f[path]
	if !ok {
		return nil, fmt.Errorf("no table for %s", path)
	}
	return table, nil
}

func testRegistry(t *testing.T) *spend.Registry {
	t.Helper()

	specs := []spend.DatasetSpec{
		{
			ID:               "device-series",
			Description:      "Monthly spend by device",
			Kind:             spend.KindSeries,
			Path:             "device.csv",
			DimensionColumns: []string{"Device"},
			ValueColumn:      "Spend_USD",
		},
		{
			ID:               "publisher-creatives",
			Description:      "Top creatives by publisher",
			Kind:             spend.KindCreatives,
			Path:             "publisher.csv",
			DimensionColumns: []string{"Publisher"},
			ValueColumn:      "Spend_USD",
			LinkColumn:       "Link_to_Creative",
		},
	}

	fetcher := stubFetcher{
		"device.csv": {
			Columns: []string{"Device", "Date", "Spend_USD"},
			Rows: []spend.Row{
				{"Device": "Mobile", "Date": "2024-01", "Spend_USD": "100"},
				{"Device": "Desktop", "Date": "2024-01", "Spend_USD": "50"},
				{"Device": "Mobile", "Date": "2024-02", "Spend_USD": "120"},
			},
		},
		"publisher.csv": {
			Columns: []string{"Publisher", "Date", "Spend_USD", "Link_to_Creative"},
			Rows: []spend.Row{
				{"Publisher": "Hulu", "Date": "2024-01", "Spend_USD": "600", "Link_to_Creative": "a.example/1.png"},
				{"Publisher": "Hulu", "Date": "2024-02", "Spend_USD": "700", "Link_to_Creative": "a.example/2.png"},
				{"Publisher": "ESPN", "Date": "2024-02", "Spend_USD": "200", "Link_to_Creative": "b.example/1.png"},
			},
		},
	}

	reg := spend.NewRegistry(fetcher, specs, slog.New(slog.DiscardHandler))
	if err := reg.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return reg
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(NewRouter(testRegistry(t), nil, nil, slog.New(slog.DiscardHandler)))
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url, body string, out any) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts := testServer(t)

	var resp healthResponse
	if code := getJSON(t, ts.URL+"/v1/health", &resp); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if resp.Status != "ok" || resp.Datasets != 2 || resp.TotalRows != 6 {
		t.Errorf("health = %+v, want ok/2/6", resp)
	}
}

func TestListDatasets(t *testing.T) {
	ts := testServer(t)

	var resp datasetsResponse
	if code := getJSON(t, ts.URL+"/v1/datasets", &resp); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if len(resp.Datasets) != 2 {
		t.Fatalf("datasets = %d, want 2", len(resp.Datasets))
	}
	if resp.Datasets[0].ID != "device-series" {
		t.Errorf("first dataset = %s, want device-series", resp.Datasets[0].ID)
	}
}

func TestStats(t *testing.T) {
	ts := testServer(t)

	var resp spend.Summary
	if code := getJSON(t, ts.URL+"/v1/datasets/device-series/stats", &resp); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if resp.Count != 3 {
		t.Errorf("Count = %d, want 3", resp.Count)
	}
	stats, ok := resp.NumericStats["Spend_USD"]
	if !ok {
		t.Fatalf("no Spend_USD stats: %v", resp.NumericStats)
	}
	if stats.Sum != 270 {
		t.Errorf("Sum = %v, want 270", stats.Sum)
	}
}

func TestStats_UnknownDataset(t *testing.T) {
	ts := testServer(t)
	if code := getJSON(t, ts.URL+"/v1/datasets/nope/stats", nil); code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
}

func TestSeries(t *testing.T) {
	ts := testServer(t)

	var resp seriesResponse
	if code := getJSON(t, ts.URL+"/v1/series/device-series", &resp); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if len(resp.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(resp.Rows))
	}
	if resp.Rows[0]["date"] != "2024-01" {
		t.Errorf("rows[0].date = %v, want 2024-01", resp.Rows[0]["date"])
	}
	if resp.Rows[0]["Mobile"] != 100.0 {
		t.Errorf("rows[0].Mobile = %v, want 100", resp.Rows[0]["Mobile"])
	}
	// Sparse month: Desktop has no February spend so the key is absent.
	if _, ok := resp.Rows[1]["Desktop"]; ok {
		t.Errorf("rows[1] = %v, want no Desktop key", resp.Rows[1])
	}
	if len(resp.DefaultValues) == 0 || resp.DefaultValues[0] != "Mobile" {
		t.Errorf("default values = %v, want Mobile first", resp.DefaultValues)
	}
}

func TestSeries_WrongKind(t *testing.T) {
	ts := testServer(t)
	if code := getJSON(t, ts.URL+"/v1/series/publisher-creatives", nil); code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
}

func TestTop(t *testing.T) {
	ts := testServer(t)

	var resp topResponse
	url := ts.URL + "/v1/top/publisher-creatives?month=2024-02&value=Hulu"
	if code := getJSON(t, url, &resp); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if len(resp.Entries) != 1 || resp.Entries[0].Spend != 700 {
		t.Errorf("entries = %v, want single 700 entry", resp.Entries)
	}
	if resp.Entries[0].Link != "https://a.example/2.png" {
		t.Errorf("link = %q, want normalized https link", resp.Entries[0].Link)
	}
	if resp.Entries[0].SpendLabel != "$700" {
		t.Errorf("spend label = %q, want $700", resp.Entries[0].SpendLabel)
	}
}

func TestTop_DefaultsToSelection(t *testing.T) {
	ts := testServer(t)

	var resp topResponse
	if code := getJSON(t, ts.URL+"/v1/top/publisher-creatives", &resp); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if resp.Month != "2024-02" || resp.Value != "Hulu" {
		t.Errorf("selection = (%s, %s), want (2024-02, Hulu)", resp.Month, resp.Value)
	}
}

func TestTop_InvalidN(t *testing.T) {
	ts := testServer(t)
	if code := getJSON(t, ts.URL+"/v1/top/publisher-creatives?n=zero", nil); code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
}

func TestSelectorFlow(t *testing.T) {
	ts := testServer(t)
	base := ts.URL + "/v1/selectors/publisher-creatives"

	var state spend.SelectorState
	if code := getJSON(t, base, &state); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if state.Month != "2024-02" || state.Value != "Hulu" {
		t.Errorf("defaults = (%s, %s), want (2024-02, Hulu)", state.Month, state.Value)
	}
	if state.MonthLabel != "February 2024" {
		t.Errorf("month label = %q, want February 2024", state.MonthLabel)
	}

	if code := postJSON(t, base+"/value", `{"value":"ESPN"}`, &state); code != http.StatusOK {
		t.Fatalf("select value status = %d, want 200", code)
	}
	if state.Value != "ESPN" || state.Month != "2024-02" {
		t.Errorf("after value change = (%s, %s), want (2024-02, ESPN)", state.Month, state.Value)
	}

	// January has no ESPN entries, so the value must fall back.
	if code := postJSON(t, base+"/month", `{"month":"2024-01"}`, &state); code != http.StatusOK {
		t.Fatalf("select month status = %d, want 200", code)
	}
	if state.Month != "2024-01" || state.Value != "Hulu" {
		t.Errorf("after month change = (%s, %s), want (2024-01, Hulu)", state.Month, state.Value)
	}
}

func TestSelector_MissingChoice(t *testing.T) {
	ts := testServer(t)
	url := ts.URL + "/v1/selectors/publisher-creatives/month"
	if code := postJSON(t, url, `{}`, nil); code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
}

func TestSelector_UnknownChoiceRejected(t *testing.T) {
	ts := testServer(t)
	base := ts.URL + "/v1/selectors/publisher-creatives"

	if code := postJSON(t, base+"/month", `{"month":"1999-01"}`, nil); code != http.StatusBadRequest {
		t.Errorf("unknown month status = %d, want 400", code)
	}
	if code := postJSON(t, base+"/value", `{"value":"Netflix"}`, nil); code != http.StatusBadRequest {
		t.Errorf("unknown value status = %d, want 400", code)
	}

	// The shared state stays where it was.
	var state spend.SelectorState
	if code := getJSON(t, base, &state); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if state.Month != "2024-02" || state.Value != "Hulu" {
		t.Errorf("state = (%s, %s), want untouched (2024-02, Hulu)", state.Month, state.Value)
	}
}

func TestSearch(t *testing.T) {
	ts := testServer(t)

	var resp searchResponse
	if code := getJSON(t, ts.URL+"/v1/search?q=hulu", &resp); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Total)
	}
	for _, hit := range resp.Hits {
		if hit.Dataset != "publisher-creatives" {
			t.Errorf("hit dataset = %s, want publisher-creatives", hit.Dataset)
		}
	}

	if code := getJSON(t, ts.URL+"/v1/search?q=hulu&limit=1", &resp); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if resp.Total != 1 {
		t.Errorf("limited total = %d, want 1", resp.Total)
	}
}

func TestAuthGate(t *testing.T) {
	sessions, err := auth.OpenStore(filepath.Join(t.TempDir(), "sessions.db"), "hunter2")
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer sessions.Close()

	ts := httptest.NewServer(NewRouter(testRegistry(t), sessions, nil, slog.New(slog.DiscardHandler)))
	defer ts.Close()

	// Health stays open.
	if code := getJSON(t, ts.URL+"/v1/health", nil); code != http.StatusOK {
		t.Errorf("health status = %d, want 200", code)
	}

	// Everything else requires a session.
	if code := getJSON(t, ts.URL+"/v1/datasets", nil); code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", code)
	}

	// Wrong password rejected.
	if code := postJSON(t, ts.URL+"/v1/auth/login", `{"password":"wrong"}`, nil); code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", code)
	}

	// Good password yields a working token.
	var login loginResponse
	if code := postJSON(t, ts.URL+"/v1/auth/login", `{"password":"hunter2"}`, &login); code != http.StatusOK {
		t.Fatalf("login status = %d, want 200", code)
	}
	if login.Token == "" {
		t.Fatal("login returned empty token")
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/datasets", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("authorized GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("authorized status = %d, want 200", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := testServer(t)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/v1/datasets", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}
