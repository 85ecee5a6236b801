package google

import (
	"encoding/json"
	"fmt"
	"strings"

	"yoyaku/internal/core"
	"yoyaku/internal/export"
)

// Header is the first row of the reservations sheet.
var Header = []string{
	"id",
	"date",
	"customer_name",
	"type",
	"unit_price",
	"number_of_people",
	"tennis_court",
	"banquet_hall",
	"other",
	"total_amount",
	"rooms",
}

// lastColumn is the sheet column of the final header entry.
const lastColumn = "K"

// parseRows converts a values matrix (as returned by the Sheets API) into
// reservations. Columns are located by header name when a header row is
// present, otherwise the Header order is assumed. Rows without an id are
// skipped; rows that fail to parse are reported in skipped.
func parseRows(values [][]interface{}) (out []core.Reservation, skipped []string) {
	out = make([]core.Reservation, 0, len(values))
	if len(values) == 0 {
		return out, nil
	}

	cols := defaultColumns()
	start := 0
	if first := toStrings(values[0]); indexOf(first, "id") == 0 {
		cols = columnsFrom(first)
		start = 1
	}

	for i := start; i < len(values); i++ {
		row := toStrings(values[i])
		id := safeGet(row, cols["id"])
		if id == "" {
			continue
		}
		r, err := parseRow(row, cols)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("row %d (%s): %v", i+1, id, err))
			continue
		}
		out = append(out, r)
	}
	return out, skipped
}

func parseRow(row []string, cols map[string]int) (core.Reservation, error) {
	amount := func(name string) (int64, error) {
		v, err := core.ParseYen(safeGet(row, cols[name]))
		if err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
		return v, nil
	}

	r := core.Reservation{
		ID:           safeGet(row, cols["id"]),
		Date:         safeGet(row, cols["date"]),
		CustomerName: safeGet(row, cols["customer_name"]),
		Type:         core.CustomerType(safeGet(row, cols["type"])),
	}
	var err error
	if r.UnitPrice, err = amount("unit_price"); err != nil {
		return r, err
	}
	if r.NumberOfPeople, err = amount("number_of_people"); err != nil {
		return r, err
	}
	if r.TennisCourt, err = amount("tennis_court"); err != nil {
		return r, err
	}
	if r.BanquetHall, err = amount("banquet_hall"); err != nil {
		return r, err
	}
	if r.Other, err = amount("other"); err != nil {
		return r, err
	}
	if r.TotalAmount, err = amount("total_amount"); err != nil {
		return r, err
	}
	if r.Rooms, err = parseRooms(safeGet(row, cols["rooms"])); err != nil {
		return r, err
	}
	return r, nil
}

// parseRooms accepts the JSON written by this package and the human readable
// "本館1(2人)、別館(3人)" form used in exports.
func parseRooms(cell string) ([]core.RoomAllocation, error) {
	cell = strings.TrimSpace(cell)
	if strings.HasPrefix(cell, "[") {
		var rooms []core.RoomAllocation
		if err := json.Unmarshal([]byte(cell), &rooms); err != nil {
			return nil, fmt.Errorf("rooms: %w", err)
		}
		if len(rooms) == 0 {
			return nil, nil
		}
		return rooms, nil
	}
	rooms, err := export.ParseRoomSummary(cell)
	if err != nil {
		return nil, fmt.Errorf("rooms: %w", err)
	}
	return rooms, nil
}

// toRow renders r in Header order.
func toRow(r core.Reservation) ([]interface{}, error) {
	rooms := ""
	if len(r.Rooms) > 0 {
		b, err := json.Marshal(r.Rooms)
		if err != nil {
			return nil, fmt.Errorf("encode rooms: %w", err)
		}
		rooms = string(b)
	}
	return []interface{}{
		r.ID,
		r.Date,
		r.CustomerName,
		string(r.Type),
		r.UnitPrice,
		r.NumberOfPeople,
		r.TennisCourt,
		r.BanquetHall,
		r.Other,
		r.TotalAmount,
		rooms,
	}, nil
}

func headerRow() []interface{} {
	out := make([]interface{}, len(Header))
	for i, h := range Header {
		out[i] = h
	}
	return out
}

func defaultColumns() map[string]int {
	cols := make(map[string]int, len(Header))
	for i, h := range Header {
		cols[h] = i
	}
	return cols
}

func columnsFrom(headers []string) map[string]int {
	cols := make(map[string]int, len(Header))
	for _, h := range Header {
		cols[h] = indexOf(headers, h)
	}
	return cols
}

// findRow returns the 1-based sheet row holding id in the first column, or 0.
func findRow(idColumn [][]interface{}, id string) int {
	for i, row := range idColumn {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return 0
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
