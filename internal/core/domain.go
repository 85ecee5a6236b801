package core

import (
	"errors"
	"strings"
	"time"
)

// Customer types recorded on a reservation.
const (
	General    CustomerType = "一般"
	Student    CustomerType = "学生"
	SchoolTrip CustomerType = "修学"
	Child      CustomerType = "子供"

	// SegmentOther collects legacy records whose type is not one of the known values.
	SegmentOther CustomerType = "その他"
)

// DateLayout is the calendar date format used for Reservation.Date.
const DateLayout = "2006-01-02"

type (
	CustomerType string

	RoomType string

	RoomAllocation struct {
		RoomType   RoomType `json:"roomType" validate:"roomtype"`
		GuestCount int64    `json:"guestCount" validate:"gt=0,max=99999"`
	}

	// Reservation is one booking. NumberOfPeople and TotalAmount are derived
	// values; call Normalize before persisting.
	Reservation struct {
		ID             string           `json:"id"`
		Date           string           `json:"date" validate:"isodate"`
		CustomerName   string           `json:"customerName" validate:"nonblank,max=200"`
		Type           CustomerType     `json:"type" validate:"customertype"`
		UnitPrice      int64            `json:"unitPrice" validate:"gte=0,max=999999999999"`
		NumberOfPeople int64            `json:"numberOfPeople" validate:"gte=0,max=99999"`
		TennisCourt    int64            `json:"tennisCourt" validate:"gte=0,max=999999999999"`
		BanquetHall    int64            `json:"banquetHall" validate:"gte=0,max=999999999999"`
		Other          int64            `json:"other" validate:"gte=0,max=999999999999"`
		TotalAmount    int64            `json:"totalAmount" validate:"gte=0,max=999999999999"`
		Rooms          []RoomAllocation `json:"rooms,omitempty" validate:"dive"`
	}

	// ChangeOp names the kind of write that produced a change event.
	ChangeOp string
)

const (
	OpUpsert ChangeOp = "upsert"
	OpDelete ChangeOp = "delete"
)

var (
	ErrInvalidReservation = errors.New("invalid reservation")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidMonth       = errors.New("invalid month")
)

var customerTypes = []CustomerType{General, Student, SchoolTrip, Child}

var roomCatalog = []RoomType{
	"本館1", "本館2", "本館3", "本館4", "本館5", "本館6", "本館7",
	"別館",
	"コテージ1", "コテージ2", "コテージ3",
}

// CustomerTypes returns the known customer types in display order.
func CustomerTypes() []CustomerType {
	return append([]CustomerType(nil), customerTypes...)
}

// Segments returns the aggregation buckets: every known type followed by SegmentOther.
func Segments() []CustomerType {
	return append(CustomerTypes(), SegmentOther)
}

// IsKnown reports whether t is one of the recorded customer types.
func (t CustomerType) IsKnown() bool {
	for _, k := range customerTypes {
		if t == k {
			return true
		}
	}
	return false
}

// Segment returns the bucket a reservation of this type is totalled under.
func (t CustomerType) Segment() CustomerType {
	if t.IsKnown() {
		return t
	}
	return SegmentOther
}

// Label returns the text shown for t; a missing type renders as "-".
func (t CustomerType) Label() string {
	if strings.TrimSpace(string(t)) == "" {
		return "-"
	}
	return string(t)
}

// DefaultRoomCatalog returns the rooms of the property in display order.
func DefaultRoomCatalog() []RoomType {
	return append([]RoomType(nil), roomCatalog...)
}

func (r RoomType) IsKnown() bool {
	for _, k := range roomCatalog {
		if r == k {
			return true
		}
	}
	return false
}

// ParseDate parses a YYYY-MM-DD date. Impossible dates such as 2025-02-30 fail.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// CalculateTotalAmount returns unitPrice*people plus the surcharges.
// Negative inputs count as zero and the result saturates at math.MaxInt64,
// which Validate then rejects as above MaxAmount.
func CalculateTotalAmount(unitPrice, people, tennisCourt, banquetHall, other int64) int64 {
	total := mulYen(nonNegative(unitPrice), nonNegative(people))
	for _, v := range []int64{tennisCourt, banquetHall, other} {
		total = AddYen(total, nonNegative(v))
	}
	return total
}

// Clone returns a deep copy of r.
func (r Reservation) Clone() Reservation {
	out := r
	if r.Rooms != nil {
		out.Rooms = append([]RoomAllocation(nil), r.Rooms...)
	}
	return out
}

// Normalize returns a copy of r with amounts clamped at zero and the derived
// fields recomputed. When rooms are present the head count is their guest sum.
func (r Reservation) Normalize() Reservation {
	out := r.Clone()
	out.CustomerName = strings.TrimSpace(out.CustomerName)
	out.Date = strings.TrimSpace(out.Date)
	out.UnitPrice = nonNegative(out.UnitPrice)
	out.TennisCourt = nonNegative(out.TennisCourt)
	out.BanquetHall = nonNegative(out.BanquetHall)
	out.Other = nonNegative(out.Other)

	if len(out.Rooms) > 0 {
		var people int64
		for _, a := range out.Rooms {
			people = AddYen(people, nonNegative(a.GuestCount))
		}
		out.NumberOfPeople = people
	}
	out.NumberOfPeople = nonNegative(out.NumberOfPeople)

	out.TotalAmount = CalculateTotalAmount(out.UnitPrice, out.NumberOfPeople, out.TennisCourt, out.BanquetHall, out.Other)
	return out
}

// Time returns the parsed reservation date.
func (r Reservation) Time() (time.Time, bool) {
	t, err := ParseDate(r.Date)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// MonthKey returns the month the reservation belongs to. ok is false when the
// date does not parse.
func (r Reservation) MonthKey() (MonthKey, bool) {
	t, ok := r.Time()
	if !ok {
		return "", false
	}
	return MonthKeyOf(t), true
}

// Validate checks r at the data-entry boundary.
func (r Reservation) Validate() error {
	return validateStruct(r)
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
