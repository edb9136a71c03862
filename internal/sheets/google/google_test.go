package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"proiezioni/internal/core"
	"proiezioni/internal/services"
)

// fakeSheets records the calls the exporter makes against the Sheets API.
type fakeSheets struct {
	mu      sync.Mutex
	tabs    []string
	gets    int
	added   []string
	cleared []string
	written map[string][][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/spreadsheets/sheet-1"):
		f.gets++
		ss := gsheet.Spreadsheet{}
		for _, t := range f.tabs {
			ss.Sheets = append(ss.Sheets, &gsheet.Sheet{Properties: &gsheet.SheetProperties{Title: t}})
		}
		_ = json.NewEncoder(w).Encode(ss)
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, q := range req.Requests {
			if q.AddSheet != nil {
				f.added = append(f.added, q.AddSheet.Properties.Title)
				f.tabs = append(f.tabs, q.AddSheet.Properties.Title)
			}
		}
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		rng := strings.TrimSuffix(path[strings.Index(path, "/values/")+len("/values/"):], ":clear")
		f.cleared = append(f.cleared, rng)
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		if r.URL.Query().Get("valueInputOption") != "RAW" {
			http.Error(w, "missing valueInputOption", http.StatusBadRequest)
			return
		}
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.written[path[strings.Index(path, "/values/")+len("/values/"):]] = vr.Values
		_, _ = w.Write([]byte(`{}`))
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, fake http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c, err := New(context.Background(), Config{SpreadsheetID: "sheet-1", SheetName: "Proiezioni"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return c
}

func testProjection() services.ScenarioProjection {
	start, _ := core.ParseDate("2024-01-01")
	sc := core.Scenario{
		ID: 3, Name: "Base", Version: 2,
		StartDate: start, EndDate: start.AddDays(1), InitialBalance: core.Money{Cents: 500},
	}
	points := []core.ProjectionPoint{
		{Date: start, Balance: core.Money{Cents: 500}},
		{Date: start.AddDays(1), Balance: core.Money{Cents: 300}, Delta: core.Money{Cents: -200}, Outflow: core.Money{Cents: -200}, Descriptions: []string{"Pane", "Latte"}},
	}
	return services.ScenarioProjection{Scenario: sc, Points: points, Summary: services.Summarize(sc.InitialBalance, points)}
}

func TestExportSnapshot_CreatesTabOnce(t *testing.T) {
	fake := &fakeSheets{tabs: []string{"Foglio1"}, written: map[string][][]any{}}
	c := newTestClient(t, fake)

	for i := 0; i < 2; i++ {
		if err := c.ExportSnapshot(context.Background(), testProjection()); err != nil {
			t.Fatalf("ExportSnapshot: %v", err)
		}
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.gets != 1 || len(fake.added) != 1 || fake.added[0] != "Proiezioni 3" {
		t.Fatalf("gets=%d added=%v", fake.gets, fake.added)
	}
	if len(fake.cleared) != 2 || fake.cleared[0] != "'Proiezioni 3'" {
		t.Fatalf("cleared=%v", fake.cleared)
	}
	rows, ok := fake.written["'Proiezioni 3'!A1"]
	if !ok {
		t.Fatalf("written ranges=%v", fake.written)
	}
	last := rows[len(rows)-1]
	if len(last) != 4 || last[0] != "2024-01-02" || last[1] != -2.0 || last[3] != "Pane; Latte" {
		t.Fatalf("last row=%v", last)
	}
}

func TestExportSnapshot_ExistingTab(t *testing.T) {
	fake := &fakeSheets{tabs: []string{"Proiezioni 3"}, written: map[string][][]any{}}
	c := newTestClient(t, fake)
	if err := c.ExportSnapshot(context.Background(), testProjection()); err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}
	if len(fake.added) != 0 {
		t.Fatalf("existing tab re-added: %v", fake.added)
	}
}

func TestExportSnapshot_APIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	}))
	err := c.ExportSnapshot(context.Background(), testProjection())
	if err == nil || !strings.Contains(err.Error(), "read spreadsheet tabs") {
		t.Fatalf("expected tab read error, got %v", err)
	}
}

func TestNew_Credentials(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for missing spreadsheet ID")
	}
	_, err := New(context.Background(), Config{SpreadsheetID: "x"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
	_, err = New(context.Background(), Config{SpreadsheetID: "x", ServiceAccountFile: "/does/not/exist.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected file error, got %v", err)
	}
}

func TestQuote(t *testing.T) {
	if got := quote("Bob's 1"); got != "'Bob''s 1'" {
		t.Fatalf("quote=%q", got)
	}
}
