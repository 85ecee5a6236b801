// Package ledger aggregates reservations into monthly and yearly revenue.
//
// Every function is pure: results are recomputed from the full slice passed
// in, the input is never mutated and returned records are copies. Records
// whose date does not parse are left out of every result.
package ledger

import (
	"sort"
	"time"

	"yoyaku/internal/core"
)

// GroupByMonth buckets reservations by calendar month. Months are returned in
// ascending order and each month's reservations are sorted by date; records on
// the same date keep their input order.
func GroupByMonth(rs []core.Reservation) []core.MonthlySummary {
	index := make(map[core.MonthKey]int)
	out := make([]core.MonthlySummary, 0)

	for _, r := range rs {
		key, ok := r.MonthKey()
		if !ok {
			continue
		}
		i, seen := index[key]
		if !seen {
			i = len(out)
			index[key] = i
			out = append(out, core.MonthlySummary{Month: key, Segments: core.NewSegments()})
		}
		m := &out[i]
		m.Reservations = append(m.Reservations, r.Clone())
		m.TotalAmount = core.AddYen(m.TotalAmount, r.TotalAmount)
		seg := r.Type.Segment()
		m.Segments[seg] = core.AddYen(m.Segments[seg], r.TotalAmount)
	}

	for i := range out {
		m := &out[i]
		m.GeneralTotal = m.Segments[core.General]
		m.StudentTotal = m.Segments[core.Student]
		sort.SliceStable(m.Reservations, func(a, b int) bool {
			return m.Reservations[a].Date < m.Reservations[b].Date
		})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Month < out[b].Month })
	return out
}

// MonthSales totals the reservations of one month. A month with no
// reservations yields zeros.
func MonthSales(month core.MonthKey, rs []core.Reservation) core.Sales {
	var s core.Sales
	for _, r := range rs {
		key, ok := r.MonthKey()
		if !ok || key != month {
			continue
		}
		s.TotalAmount = core.AddYen(s.TotalAmount, r.TotalAmount)
		switch r.Type.Segment() {
		case core.General:
			s.GeneralTotal = core.AddYen(s.GeneralTotal, r.TotalAmount)
		case core.Student:
			s.StudentTotal = core.AddYen(s.StudentTotal, r.TotalAmount)
		}
	}
	return s
}

// Summarize totals an arbitrary set of reservations by segment.
func Summarize(rs []core.Reservation) core.Totals {
	t := core.Totals{Segments: core.NewSegments()}
	for _, r := range rs {
		if _, ok := r.MonthKey(); !ok {
			continue
		}
		t.TotalAmount = core.AddYen(t.TotalAmount, r.TotalAmount)
		seg := r.Type.Segment()
		t.Segments[seg] = core.AddYen(t.Segments[seg], r.TotalAmount)
		t.Count++
	}
	return t
}

// YearSummary rolls up the twelve months of year.
func YearSummary(year int, rs []core.Reservation) core.YearSummary {
	months := MonthsForYear(year)
	inYear := FilterYear(year, rs)

	ys := core.YearSummary{
		Year:   year,
		Totals: Summarize(inYear),
		Months: make([]core.MonthSales, 0, len(months)),
	}
	for _, m := range months {
		ys.Months = append(ys.Months, core.MonthSales{
			Month: m,
			Name:  MonthName(m),
			Sales: MonthSales(m, inYear),
		})
	}
	return ys
}

// FilterMonth returns copies of the reservations dated inside month.
func FilterMonth(month core.MonthKey, rs []core.Reservation) []core.Reservation {
	out := make([]core.Reservation, 0)
	for _, r := range rs {
		if key, ok := r.MonthKey(); ok && key == month {
			out = append(out, r.Clone())
		}
	}
	return out
}

// FilterYear returns copies of the reservations dated inside year.
func FilterYear(year int, rs []core.Reservation) []core.Reservation {
	out := make([]core.Reservation, 0)
	for _, r := range rs {
		if t, ok := r.Time(); ok && t.Year() == year {
			out = append(out, r.Clone())
		}
	}
	return out
}

// SortByDate returns a copy of rs ordered by date, stable for equal dates.
func SortByDate(rs []core.Reservation) []core.Reservation {
	out := make([]core.Reservation, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Clone())
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Date < out[b].Date })
	return out
}

// MonthsForYear returns the twelve month keys of year in order.
func MonthsForYear(year int) []core.MonthKey {
	out := make([]core.MonthKey, 0, 12)
	for m := 1; m <= 12; m++ {
		out = append(out, core.NewMonthKey(year, m))
	}
	return out
}

// NextSixMonths returns the month containing now and the five following it.
func NextSixMonths(now time.Time) []core.MonthKey {
	return UpcomingMonths(now, 6)
}

// UpcomingMonths returns n consecutive month keys starting at the month of now.
func UpcomingMonths(now time.Time, n int) []core.MonthKey {
	if n <= 0 {
		return []core.MonthKey{}
	}
	start := core.MonthKeyOf(now)
	out := make([]core.MonthKey, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, start.AddMonths(i))
	}
	return out
}

// MonthName renders the display label of a month key, e.g. 2025年3月.
func MonthName(k core.MonthKey) string {
	return k.Name()
}
