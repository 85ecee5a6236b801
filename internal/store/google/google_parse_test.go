package google

import (
	"testing"

	"yoyaku/internal/core"
)

func TestParseRows_WithHeader(t *testing.T) {
	values := [][]interface{}{
		{"id", "date", "customer_name", "type", "unit_price", "number_of_people", "tennis_court", "banquet_hall", "other", "total_amount", "rooms"},
		{"r1", "2025-03-05", "山田", "一般", "1000", "2", "0", "0", "0", "2000", `[{"roomType":"本館1","guestCount":2}]`},
		{"r2", "2025-03-20", "学生会", "学生", 500.0, 4.0, "¥1,000", "", "", "3,000", "-"},
		{"", "2025-03-21", "no id", "一般", "1", "1", "0", "0", "0", "1", ""},
		{"r3", "2025-03-22", "bad", "一般", "abc", "1", "0", "0", "0", "1", ""},
		{"r4", "2025-03-23", "summary rooms", "修学", "100", "5", "0", "0", "0", "500", "コテージ1(3人)、コテージ2(2人)"},
	}

	got, skipped := parseRows(values)

	if len(got) != 3 {
		t.Fatalf("expected 3 reservations, got %d: %+v", len(got), got)
	}
	if len(skipped) != 1 {
		t.Fatalf("expected one skipped row, got %v", skipped)
	}
	r1 := got[0]
	if r1.ID != "r1" || r1.Type != core.General || r1.TotalAmount != 2000 || len(r1.Rooms) != 1 || r1.Rooms[0].GuestCount != 2 {
		t.Fatalf("unexpected r1: %+v", r1)
	}
	r2 := got[1]
	if r2.UnitPrice != 500 || r2.NumberOfPeople != 4 || r2.TennisCourt != 1000 || r2.TotalAmount != 3000 || r2.Rooms != nil {
		t.Fatalf("unexpected r2: %+v", r2)
	}
	r4 := got[2]
	if len(r4.Rooms) != 2 || r4.Rooms[1].RoomType != "コテージ2" || r4.Rooms[1].GuestCount != 2 {
		t.Fatalf("unexpected r4 rooms: %+v", r4.Rooms)
	}
}

func TestParseRows_ReorderedHeader(t *testing.T) {
	values := [][]interface{}{
		{"id", "total_amount", "date", "type", "customer_name"},
		{"x", "900", "2025-01-02", "子供", "child"},
	}
	got, _ := parseRows(values)
	if len(got) != 1 || got[0].TotalAmount != 900 || got[0].Date != "2025-01-02" || got[0].CustomerName != "child" {
		t.Fatalf("unexpected parse: %+v", got)
	}
}

func TestParseRows_Empty(t *testing.T) {
	got, skipped := parseRows(nil)
	if got == nil || len(got) != 0 || skipped != nil {
		t.Fatalf("unexpected result: %v %v", got, skipped)
	}
}

func TestToRowMatchesHeader(t *testing.T) {
	r := core.Reservation{
		ID: "id1", Date: "2025-07-07", CustomerName: "七夕", Type: core.Child,
		UnitPrice: 1, NumberOfPeople: 2, TotalAmount: 2,
		Rooms: []core.RoomAllocation{{RoomType: "別館", GuestCount: 2}},
	}
	row, err := toRow(r)
	if err != nil {
		t.Fatalf("toRow: %v", err)
	}
	if len(row) != len(Header) {
		t.Fatalf("row has %d cells, header %d", len(row), len(Header))
	}
	back, skipped := parseRows([][]interface{}{headerRow(), row})
	if len(skipped) != 0 || len(back) != 1 {
		t.Fatalf("round trip failed: %v %v", back, skipped)
	}
	if back[0].CustomerName != "七夕" || back[0].Rooms[0].RoomType != "別館" {
		t.Fatalf("unexpected round trip: %+v", back[0])
	}
}

func TestFindRow(t *testing.T) {
	ids := [][]interface{}{{"id"}, {"a"}, {}, {"b"}}
	if got := findRow(ids, "b"); got != 4 {
		t.Fatalf("findRow = %d, want 4", got)
	}
	if got := findRow(ids, "zzz"); got != 0 {
		t.Fatalf("findRow = %d, want 0", got)
	}
}
