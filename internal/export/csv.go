// Package export writes reservations as spreadsheet-friendly CSV.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"yoyaku/internal/core"
	"yoyaku/internal/ledger"
)

// ErrNoData is returned when the requested period has no reservations.
var ErrNoData = errors.New("no reservations in period")

// bom makes spreadsheet applications detect UTF-8.
const bom = "\ufeff"

// ContentType is the media type of the exported files.
const ContentType = "text/csv; charset=utf-8"

var header = []string{
	"日付",
	"顧客名",
	"区分",
	"単価",
	"人数",
	"部屋情報",
	"テニスコート料金",
	"宴会場料金",
	"その他",
	"合計金額",
}

// WriteCSV writes a BOM, the header row and one row per reservation in date order.
func WriteCSV(w io.Writer, rs []core.Reservation) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range ledger.SortByDate(rs) {
		if err := cw.Write(row(r)); err != nil {
			return fmt.Errorf("write reservation %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// ExportMonth writes the reservations of year/month.
func ExportMonth(w io.Writer, year, month int, rs []core.Reservation) error {
	if !core.ValidMonth(month) {
		return fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
	}
	selected := ledger.FilterMonth(core.NewMonthKey(year, month), rs)
	if len(selected) == 0 {
		return ErrNoData
	}
	return WriteCSV(w, selected)
}

// ExportYear writes the reservations of year.
func ExportYear(w io.Writer, year int, rs []core.Reservation) error {
	selected := ledger.FilterYear(year, rs)
	if len(selected) == 0 {
		return ErrNoData
	}
	return WriteCSV(w, selected)
}

// MonthlyFilename is the download name of a monthly export.
func MonthlyFilename(year, month int) string {
	return fmt.Sprintf("予約データ_%d年%d月.csv", year, month)
}

// YearlyFilename is the download name of a yearly export.
func YearlyFilename(year int) string {
	return fmt.Sprintf("予約データ_%d年.csv", year)
}

// RoomSummary renders the room column, e.g. "本館1(2人)、別館(3人)", or "-" when empty.
func RoomSummary(rooms []core.RoomAllocation) string {
	if len(rooms) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(rooms))
	for _, a := range rooms {
		parts = append(parts, fmt.Sprintf("%s(%d人)", a.RoomType, a.GuestCount))
	}
	return strings.Join(parts, "、")
}

// ParseRoomSummary reverses RoomSummary. "-" and "" yield no rooms.
func ParseRoomSummary(s string) ([]core.RoomAllocation, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return nil, nil
	}
	var out []core.RoomAllocation
	for _, part := range strings.Split(s, "、") {
		part = strings.TrimSpace(part)
		open := strings.LastIndex(part, "(")
		if open <= 0 || !strings.HasSuffix(part, "人)") {
			return nil, fmt.Errorf("malformed room entry %q", part)
		}
		n, err := strconv.ParseInt(strings.TrimSuffix(part[open+1:], "人)"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed guest count in %q", part)
		}
		out = append(out, core.RoomAllocation{RoomType: core.RoomType(part[:open]), GuestCount: n})
	}
	return out, nil
}

func row(r core.Reservation) []string {
	return []string{
		r.Date,
		r.CustomerName,
		string(r.Type),
		strconv.FormatInt(r.UnitPrice, 10),
		strconv.FormatInt(r.NumberOfPeople, 10),
		RoomSummary(r.Rooms),
		strconv.FormatInt(r.TennisCourt, 10),
		strconv.FormatInt(r.BanquetHall, 10),
		strconv.FormatInt(r.Other, 10),
		strconv.FormatInt(r.TotalAmount, 10),
	}
}
