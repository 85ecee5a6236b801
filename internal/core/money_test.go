package core

import (
	"math"
	"testing"
)

func TestParseYen(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 1, true},
		{"12000", 12000, true},
		{"¥12,000", 12000, true},
		{"￥ 3,500", 3500, true},
		{"1500.5", 1501, true}, // half-up rounding
		{"1500.4", 1500, true},
		{" 250 ", 250, true},
		{"", 0, true},
		{"-1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"99999999999999999999999", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseYen(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestNumericOrZero(t *testing.T) {
	cases := map[string]int64{
		"":      0,
		"abc":   0,
		"-500":  0,
		"700":   700,
		"7.6":   8,
		"1,000": 1000,
	}
	for in, want := range cases {
		if got := NumericOrZero(in); got != want {
			t.Fatalf("NumericOrZero(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestFormatYen(t *testing.T) {
	cases := map[int64]string{
		0:       "¥0",
		980:     "¥980",
		1234567: "¥1,234,567",
		-5000:   "-¥5,000",
	}
	for in, want := range cases {
		if got := FormatYen(in); got != want {
			t.Fatalf("FormatYen(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestAddYen(t *testing.T) {
	cases := []struct {
		a, b, want int64
	}{
		{1, 2, 3},
		{math.MaxInt64, 1, math.MaxInt64},
		{math.MaxInt64 - 5, 5, math.MaxInt64},
		{math.MinInt64, -1, math.MinInt64},
		{-3, 1, -2},
	}
	for _, tc := range cases {
		if got := AddYen(tc.a, tc.b); got != tc.want {
			t.Errorf("AddYen(%d, %d) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
