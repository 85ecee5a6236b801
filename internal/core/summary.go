package core

// MonthlySummary is one month of reservations with their totals.
type MonthlySummary struct {
	Month        MonthKey               `json:"month"`
	TotalAmount  int64                  `json:"totalAmount"`
	GeneralTotal int64                  `json:"generalTotal"`
	StudentTotal int64                  `json:"studentTotal"`
	Segments     map[CustomerType]int64 `json:"segments"`
	Reservations []Reservation          `json:"reservations"`
}

// Sales is the narrow per-month revenue tuple.
type Sales struct {
	TotalAmount  int64 `json:"totalAmount"`
	GeneralTotal int64 `json:"generalTotal"`
	StudentTotal int64 `json:"studentTotal"`
}

// MonthSales pairs a month with its sales.
type MonthSales struct {
	Month MonthKey `json:"month"`
	Name  string   `json:"name"`
	Sales
}

// Totals aggregates an arbitrary set of reservations.
type Totals struct {
	TotalAmount int64                  `json:"totalAmount"`
	Segments    map[CustomerType]int64 `json:"segments"`
	Count       int                    `json:"count"`
}

func (t Totals) General() int64 { return t.Segments[General] }

func (t Totals) Student() int64 { return t.Segments[Student] }

func (t Totals) Other() int64 { return t.Segments[SegmentOther] }

// YearSummary is the rollup of one calendar year.
type YearSummary struct {
	Year int `json:"year"`
	Totals
	Months []MonthSales `json:"months"`
}

// NewSegments returns a segment map with every bucket present at zero.
func NewSegments() map[CustomerType]int64 {
	m := make(map[CustomerType]int64, len(customerTypes)+1)
	for _, s := range Segments() {
		m[s] = 0
	}
	return m
}
