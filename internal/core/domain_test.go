package core

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func validReservation() Reservation {
	return Reservation{
		ID:           "r1",
		Date:         "2025-03-10",
		CustomerName: "山田",
		Type:         General,
		UnitPrice:    8000,
		Rooms: []RoomAllocation{
			{RoomType: "本館1", GuestCount: 2},
			{RoomType: "別館", GuestCount: 3},
		},
	}
}

func TestCalculateTotalAmount(t *testing.T) {
	cases := []struct {
		name                                  string
		price, people, tennis, banquet, other int64
		want                                  int64
	}{
		{"plain", 5000, 3, 0, 0, 0, 15000},
		{"surcharges", 5000, 3, 2000, 10000, 500, 27500},
		{"zero people", 5000, 0, 2000, 0, 0, 2000},
		{"negative price", -100, 3, 0, 0, 0, 0},
		{"negative surcharge", 1000, 1, -500, 0, 0, 1000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CalculateTotalAmount(tc.price, tc.people, tc.tennis, tc.banquet, tc.other)
			if got != tc.want {
				t.Fatalf("CalculateTotalAmount = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestNormalizeDerivesPeopleFromRooms(t *testing.T) {
	r := validReservation()
	r.NumberOfPeople = 99
	r.TennisCourt = 1000
	r.TotalAmount = 1

	n := r.Normalize()
	if n.NumberOfPeople != 5 {
		t.Fatalf("people = %d, want 5", n.NumberOfPeople)
	}
	if n.TotalAmount != 8000*5+1000 {
		t.Fatalf("total = %d, want %d", n.TotalAmount, 8000*5+1000)
	}
	if r.NumberOfPeople != 99 {
		t.Fatalf("Normalize mutated the receiver")
	}
}

func TestNormalizeWithoutRoomsKeepsPeople(t *testing.T) {
	r := Reservation{Date: "2025-03-01", CustomerName: "x", Type: Student, UnitPrice: 3000, NumberOfPeople: 4, Other: -20}
	n := r.Normalize()
	if n.NumberOfPeople != 4 || n.Other != 0 || n.TotalAmount != 12000 {
		t.Fatalf("unexpected normalization: %+v", n)
	}
}

func TestCloneCopiesRooms(t *testing.T) {
	r := validReservation()
	c := r.Clone()
	c.Rooms[0].GuestCount = 10
	if r.Rooms[0].GuestCount != 2 {
		t.Fatalf("clone shares the rooms slice")
	}
}

func TestReservationValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Reservation)
		field  string
	}{
		{"valid", func(*Reservation) {}, ""},
		{"bad date", func(r *Reservation) { r.Date = "2025-02-30" }, "date"},
		{"garbage date", func(r *Reservation) { r.Date = "next week" }, "date"},
		{"blank name", func(r *Reservation) { r.CustomerName = "   " }, "customerName"},
		{"unknown type", func(r *Reservation) { r.Type = "VIP" }, "type"},
		{"negative price", func(r *Reservation) { r.UnitPrice = -1 }, "unitPrice"},
		{"unknown room", func(r *Reservation) { r.Rooms[1].RoomType = "本館9" }, "rooms[1].roomType"},
		{"empty room", func(r *Reservation) { r.Rooms[0].GuestCount = 0 }, "rooms[0].guestCount"},
		{"price at ceiling", func(r *Reservation) { r.UnitPrice, r.Rooms = MaxAmount, nil }, ""},
		{"price above ceiling", func(r *Reservation) { r.UnitPrice = MaxAmount + 1 }, "unitPrice"},
		{"crowded room", func(r *Reservation) { r.Rooms[0].GuestCount = MaxPeople + 1 }, "rooms[0].guestCount"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := validReservation()
			tc.mutate(&r)
			err := r.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidReservation) {
				t.Fatalf("expected ErrInvalidReservation, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Fatalf("error %q does not mention %s", err, tc.field)
			}
		})
	}
}

func TestNormalizeHugeAmountsDoNotWrap(t *testing.T) {
	r := validReservation()
	r.Rooms = nil
	r.UnitPrice = NumericOrZero("9223372036854775807")
	r.NumberOfPeople = 3

	n := r.Normalize()
	if n.TotalAmount != math.MaxInt64 {
		t.Fatalf("TotalAmount = %d, want saturation at %d", n.TotalAmount, int64(math.MaxInt64))
	}
	err := n.Validate()
	if !errors.Is(err, ErrInvalidReservation) {
		t.Fatalf("expected ErrInvalidReservation, got %v", err)
	}
	if !strings.Contains(err.Error(), "totalAmount must be at most") {
		t.Fatalf("error %q does not mention totalAmount", err)
	}
}

func TestCalculateTotalAmountSaturates(t *testing.T) {
	got := CalculateTotalAmount(math.MaxInt64/2, 2, math.MaxInt64, 0, 1)
	if got != math.MaxInt64 {
		t.Fatalf("got %d, want %d", got, int64(math.MaxInt64))
	}
	// The largest accepted inputs still compute exactly.
	want := MaxAmount*MaxPeople + 3*MaxAmount
	if got := CalculateTotalAmount(MaxAmount, MaxPeople, MaxAmount, MaxAmount, MaxAmount); got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
}

func TestCustomerTypeSegment(t *testing.T) {
	for _, ct := range CustomerTypes() {
		if ct.Segment() != ct {
			t.Fatalf("%s should be its own segment", ct)
		}
	}
	if CustomerType("VIP").Segment() != SegmentOther {
		t.Fatalf("unknown type should fall into the other segment")
	}
	if CustomerType("").Segment() != SegmentOther {
		t.Fatalf("empty type should fall into the other segment")
	}
	if CustomerType(" ").Label() != "-" || Student.Label() != "学生" {
		t.Fatalf("unexpected labels %q %q", CustomerType(" ").Label(), Student.Label())
	}
}

func TestDefaultRoomCatalog(t *testing.T) {
	rooms := DefaultRoomCatalog()
	if len(rooms) != 11 {
		t.Fatalf("catalog has %d rooms, want 11", len(rooms))
	}
	rooms[0] = "changed"
	if DefaultRoomCatalog()[0] != "本館1" {
		t.Fatalf("catalog is mutable through the returned slice")
	}
}

func TestReservationMonthKey(t *testing.T) {
	r := Reservation{Date: "2024-12-31"}
	k, ok := r.MonthKey()
	if !ok || k != "2024-12" {
		t.Fatalf("MonthKey = %q, %v", k, ok)
	}
	if _, ok := (Reservation{Date: "31/12/2024"}).MonthKey(); ok {
		t.Fatalf("expected unparsable date to report !ok")
	}
}
