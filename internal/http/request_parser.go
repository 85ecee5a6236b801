package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"yoyaku/internal/core"
)

const (
	maxRecordBody = 64 << 10
	maxImportBody = 16 << 20
)

var errBadRequest = errors.New("malformed request")

// amount decodes any JSON value with the numeric-or-zero rule: numbers and
// numeric strings are kept, everything else becomes 0.
type amount int64

func (a *amount) UnmarshalJSON(b []byte) error {
	raw := bytes.TrimSpace(b)
	text := string(raw)
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			text = ""
		}
	}
	*a = amount(core.NumericOrZero(text))
	return nil
}

type roomPayload struct {
	RoomType   string `json:"roomType"`
	GuestCount amount `json:"guestCount"`
}

// reservationPayload is the JSON body of a reservation write. Derived fields
// sent by clients are accepted but recomputed.
type reservationPayload struct {
	ID             string        `json:"id"`
	Date           string        `json:"date"`
	CustomerName   string        `json:"customerName"`
	Type           string        `json:"type"`
	UnitPrice      amount        `json:"unitPrice"`
	NumberOfPeople amount        `json:"numberOfPeople"`
	TennisCourt    amount        `json:"tennisCourt"`
	BanquetHall    amount        `json:"banquetHall"`
	Other          amount        `json:"other"`
	TotalAmount    amount        `json:"totalAmount"`
	Rooms          []roomPayload `json:"rooms"`
}

func (p reservationPayload) reservation() core.Reservation {
	r := core.Reservation{
		ID:             strings.TrimSpace(p.ID),
		Date:           strings.TrimSpace(p.Date),
		CustomerName:   sanitizeInput(p.CustomerName),
		Type:           core.CustomerType(strings.TrimSpace(p.Type)),
		UnitPrice:      int64(p.UnitPrice),
		NumberOfPeople: int64(p.NumberOfPeople),
		TennisCourt:    int64(p.TennisCourt),
		BanquetHall:    int64(p.BanquetHall),
		Other:          int64(p.Other),
		TotalAmount:    int64(p.TotalAmount),
	}
	for _, room := range p.Rooms {
		r.Rooms = append(r.Rooms, core.RoomAllocation{
			RoomType:   core.RoomType(strings.TrimSpace(room.RoomType)),
			GuestCount: int64(room.GuestCount),
		})
	}
	return r
}

// decodeJSON reads a single JSON value of at most limit bytes into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	body := http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON value", errBadRequest)
	}
	return nil
}

func decodeReservation(w http.ResponseWriter, r *http.Request) (core.Reservation, error) {
	var p reservationPayload
	if err := decodeJSON(w, r, maxRecordBody, &p); err != nil {
		return core.Reservation{}, err
	}
	return p.reservation(), nil
}

// reservationFromForm reads the reservation form. Rooms arrive as parallel
// roomType/guestCount lists; rows without a room are skipped.
func reservationFromForm(form url.Values) core.Reservation {
	r := core.Reservation{
		Date:           strings.TrimSpace(form.Get("date")),
		CustomerName:   sanitizeInput(form.Get("customerName")),
		Type:           core.CustomerType(strings.TrimSpace(form.Get("type"))),
		UnitPrice:      core.NumericOrZero(form.Get("unitPrice")),
		NumberOfPeople: core.NumericOrZero(form.Get("numberOfPeople")),
		TennisCourt:    core.NumericOrZero(form.Get("tennisCourt")),
		BanquetHall:    core.NumericOrZero(form.Get("banquetHall")),
		Other:          core.NumericOrZero(form.Get("other")),
	}

	rooms := form["roomType"]
	guests := form["guestCount"]
	for i, room := range rooms {
		room = strings.TrimSpace(room)
		if room == "" {
			continue
		}
		var count int64
		if i < len(guests) {
			count = core.NumericOrZero(guests[i])
		}
		r.Rooms = append(r.Rooms, core.RoomAllocation{RoomType: core.RoomType(room), GuestCount: count})
	}
	return r
}

// pathYear reads the {year} URL parameter.
func pathYear(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "year")
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1 || year > 9999 {
		return 0, fmt.Errorf("%w: year %q", errBadRequest, raw)
	}
	return year, nil
}

// pathMonth reads the {month} URL parameter as a month number.
func pathMonth(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "month")
	month, err := strconv.Atoi(raw)
	if err != nil || !core.ValidMonth(month) {
		return 0, fmt.Errorf("%w: %q", core.ErrInvalidMonth, raw)
	}
	return month, nil
}

// queryYearMonth extracts year and month from query parameters, using the
// current date for anything missing or out of range.
func queryYearMonth(query url.Values, now time.Time) (year, month int) {
	year = now.Year()
	month = int(now.Month())

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil && y > 0 && y <= 9999 {
			year = y
		}
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil && core.ValidMonth(m) {
			month = m
		}
	}
	return year, month
}

// sanitizeInput removes control characters except tab and newlines and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
