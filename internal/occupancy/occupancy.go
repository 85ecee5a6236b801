// Package occupancy computes the day by room guest grid for one month.
package occupancy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"yoyaku/internal/core"
)

var hundred = decimal.NewFromInt(100)

// Occupancy is the guest grid of a single year-month. Grid is indexed
// [day-1][room index], with rooms in the order of Rooms.
type Occupancy struct {
	Year        int                   `json:"year"`
	Month       int                   `json:"month"`
	DaysInMonth int                   `json:"daysInMonth"`
	Rooms       []core.RoomType       `json:"rooms"`
	Grid        [][]int64             `json:"grid"`
	Rates       map[core.RoomType]int `json:"rates"`
}

// Compute builds the occupancy of year/month over the given room catalog.
// Guest counts allocated to the same room on the same day are summed.
// Allocations to rooms outside the catalog are ignored.
func Compute(year, month int, rs []core.Reservation, catalog []core.RoomType) (Occupancy, error) {
	if !core.ValidMonth(month) {
		return Occupancy{}, fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
	}

	rooms := dedupe(catalog)
	column := make(map[core.RoomType]int, len(rooms))
	for i, r := range rooms {
		column[r] = i
	}

	days := core.DaysInMonth(year, month)
	grid := make([][]int64, days)
	for d := range grid {
		grid[d] = make([]int64, len(rooms))
	}

	target := core.NewMonthKey(year, month)
	for _, r := range rs {
		t, ok := r.Time()
		if !ok || !target.Contains(t) {
			continue
		}
		row := grid[t.Day()-1]
		for _, a := range r.Rooms {
			col, known := column[a.RoomType]
			if !known {
				continue
			}
			row[col] += a.GuestCount
		}
	}

	rates := make(map[core.RoomType]int, len(rooms))
	for col, room := range rooms {
		occupied := 0
		for d := 0; d < days; d++ {
			if grid[d][col] > 0 {
				occupied++
			}
		}
		rates[room] = Rate(occupied, days)
	}

	return Occupancy{
		Year:        year,
		Month:       month,
		DaysInMonth: days,
		Rooms:       rooms,
		Grid:        grid,
		Rates:       rates,
	}, nil
}

// Rate returns round(100*occupied/days) with halves rounded up.
func Rate(occupied, days int) int {
	if days <= 0 || occupied <= 0 {
		return 0
	}
	r := decimal.NewFromInt(int64(occupied)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(days))).
		Round(0)
	return int(r.IntPart())
}

// Guests returns the guests in room on day (1-based). Out-of-range lookups are zero.
func (o Occupancy) Guests(day int, room core.RoomType) int64 {
	if day < 1 || day > len(o.Grid) {
		return 0
	}
	for i, r := range o.Rooms {
		if r == room {
			return o.Grid[day-1][i]
		}
	}
	return 0
}

// OccupiedDays counts the days on which room has at least one guest.
func (o Occupancy) OccupiedDays(room core.RoomType) int {
	n := 0
	for day := 1; day <= len(o.Grid); day++ {
		if o.Guests(day, room) > 0 {
			n++
		}
	}
	return n
}

func dedupe(in []core.RoomType) []core.RoomType {
	seen := make(map[core.RoomType]struct{}, len(in))
	out := make([]core.RoomType, 0, len(in))
	for _, r := range in {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
