package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestParsePercent(t *testing.T) {
	cases := []struct {
		in  string
		out Percent
		ok  bool
	}{
		{"60", 6000, true},
		{"12.5", 1250, true},
		{"100", 10000, true},
		{"0", 0, true},
		{"100.01", 0, false},
		{"-1", 0, false},
		{"pct", 0, false},
	}
	for _, tc := range cases {
		got, err := ParsePercent(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestDivRoundHalfEven(t *testing.T) {
	cases := []struct {
		num, den, want int64
	}{
		{100, 2, 50},
		{101, 2, 50},  // 50.5 rounds to even 50
		{103, 2, 52},  // 51.5 rounds to even 52
		{105, 10, 10}, // 10.5 -> 10
		{115, 10, 12}, // 11.5 -> 12
		{107, 2, 54},  // 53.5 -> 54
		{-101, 2, -50},
	}
	for _, tc := range cases {
		if got := divRoundHalfEven(tc.num, tc.den); got != tc.want {
			t.Fatalf("divRoundHalfEven(%d, %d) = %d, want %d", tc.num, tc.den, got, tc.want)
		}
	}
}

func TestMoneyApplyPercent(t *testing.T) {
	cases := []struct {
		cents int64
		pct   Percent
		want  int64
	}{
		{10000, 6000, 6000},   // 60% of 100.00
		{10000, 10000, 10000}, // 100%
		{10000, 0, 0},
		{333, 5000, 166}, // 166.5 rounds to even 166
		{335, 5000, 168}, // 167.5 rounds to even 168
	}
	for _, tc := range cases {
		got := Money{Cents: tc.cents}.ApplyPercent(tc.pct)
		if got.Cents != tc.want {
			t.Fatalf("%d * %s%% = %d, want %d", tc.cents, tc.pct, got.Cents, tc.want)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := (Money{Cents: -5}).Validate(); err == nil {
		t.Fatalf("expected error for negative")
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{123, "1.23"},
		{100000, "1000.00"},
		{5, "0.05"},
	}
	for _, tc := range cases {
		if got := (Money{Cents: tc.cents}).String(); got != tc.want {
			t.Fatalf("%d cents = %q, want %q", tc.cents, got, tc.want)
		}
	}
}
