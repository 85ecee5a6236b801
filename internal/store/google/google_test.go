package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"yoyaku/internal/core"
	"yoyaku/internal/store"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheets emulates the handful of Sheets endpoints the client uses on a
// single tab named "Reservations".
type fakeSheets struct {
	mu      sync.Mutex
	rows    [][]interface{}
	fail    bool
	deletes int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		http.Error(w, `{"error":{"code":503,"message":"backend down"}}`, http.StatusServiceUnavailable)
		return
	}

	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && path == "/v4/spreadsheets/sid":
		writeJSON(w, map[string]any{"sheets": []any{map[string]any{"properties": map[string]any{"sheetId": 7, "title": "Reservations"}}}})
	case r.Method == http.MethodPost && path == "/v4/spreadsheets/sid:batchUpdate":
		var req gsheet.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		dr := req.Requests[0].DeleteDimension.Range
		f.rows = append(f.rows[:dr.StartIndex], f.rows[dr.EndIndex:]...)
		f.deletes++
		writeJSON(w, map[string]any{})
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/v4/spreadsheets/sid/values/"):
		values := f.rows
		if strings.HasSuffix(path, "!A:A") {
			values = make([][]interface{}, len(f.rows))
			for i, row := range f.rows {
				values[i] = row[:1]
			}
		}
		writeJSON(w, map[string]any{"values": values})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.rows = append(f.rows, vr.Values...)
		writeJSON(w, map[string]any{})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		f.rows = nil
		writeJSON(w, map[string]any{})
	case r.Method == http.MethodPut && strings.HasPrefix(path, "/v4/spreadsheets/sid/values/"):
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		start := startRow(path)
		for i, row := range vr.Values {
			idx := start - 1 + i
			for len(f.rows) <= idx {
				f.rows = append(f.rows, []interface{}{})
			}
			f.rows[idx] = row
		}
		writeJSON(w, map[string]any{})
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

// startRow extracts N from ".../Reservations!A<N>:K<M>".
func startRow(path string) int {
	i := strings.Index(path, "!A")
	j := strings.Index(path[i:], ":")
	n := 0
	for _, ch := range path[i+2 : i+j] {
		n = n*10 + int(ch-'0')
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newFakeClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return NewWithService(svc, "sid", ""), fake
}

func sample(id, date string) core.Reservation {
	return core.Reservation{
		ID: id, Date: date, CustomerName: "テスト " + id, Type: core.General,
		UnitPrice: 7000, NumberOfPeople: 3, Other: 500, TotalAmount: 21500,
		Rooms: []core.RoomAllocation{{RoomType: "別館", GuestCount: 3}},
	}
}

func TestClientWritesAndReadsBack(t *testing.T) {
	ctx := context.Background()
	c, fake := newFakeClient(t)

	if err := c.Add(ctx, sample("a", "2025-05-01")); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if err := c.Add(ctx, sample("b", "2025-05-02")); err != nil {
		t.Fatalf("add b: %v", err)
	}
	if err := c.Add(ctx, sample("a", "2025-05-03")); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if len(fake.rows) != 3 {
		t.Fatalf("expected header plus two rows, got %d", len(fake.rows))
	}

	upd := sample("b", "2025-05-09")
	upd.CustomerName = "更新"
	if err := c.Update(ctx, upd); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := c.Get(ctx, "b")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CustomerName != "更新" || got.Date != "2025-05-09" || got.Rooms[0].RoomType != "別館" {
		t.Fatalf("unexpected row after update: %+v", got)
	}

	if err := c.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := c.Delete(ctx, "a"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	all, err := c.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(all) != 1 || all[0].ID != "b" || fake.deletes != 1 {
		t.Fatalf("unexpected state: %+v deletes=%d", all, fake.deletes)
	}
}

func TestClientReplaceAll(t *testing.T) {
	ctx := context.Background()
	c, _ := newFakeClient(t)

	if err := c.Add(ctx, sample("old", "2024-01-01")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.ReplaceAll(ctx, []core.Reservation{sample("x", "2025-01-01"), sample("y", "2025-01-02")}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	all, err := c.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(all) != 2 || all[0].ID != "x" || all[1].ID != "y" {
		t.Fatalf("unexpected rows: %+v", all)
	}
}

func TestClientReportsUnavailable(t *testing.T) {
	c, fake := newFakeClient(t)
	fake.fail = true

	_, err := c.LoadAll(context.Background())
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := c.Add(context.Background(), sample("a", "2025-01-01")); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on add, got %v", err)
	}
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || !strings.Contains(err.Error(), "spreadsheet id") {
		t.Fatalf("expected missing spreadsheet id error, got %v", err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "sid"})
	if err == nil || !strings.Contains(err.Error(), "credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestNilServiceFails(t *testing.T) {
	c := &Client{spreadsheetID: "sid", sheetName: DefaultSheetName}
	if _, err := c.LoadAll(context.Background()); err == nil {
		t.Fatal("expected error with nil service")
	}
}
