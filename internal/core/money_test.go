package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

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

func TestParseSignedDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"-240000", -24000000, true},
		{"+380000", 38000000, true},
		{"-12,345", -1235, true},
		{"0", 0, false},
		{"-", 0, false},
		{"--1", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseSignedDecimalToCents(tc.in)
		if tc.ok && (err != nil || got != tc.out) {
			t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestParseBalanceToCents(t *testing.T) {
	for in, want := range map[string]int64{"": 0, "0": 0, "100000": 10000000, "-5,5": -550} {
		got, err := ParseBalanceToCents(in)
		if err != nil || got != want {
			t.Fatalf("%q expected %d, got %d (err=%v)", in, want, got, err)
		}
	}
}

func TestMoneyDecimalRoundTrip(t *testing.T) {
	m := Money{Cents: -12345}
	if got := m.Decimal().String(); got != "-123.45" {
		t.Fatalf("Decimal() = %s", got)
	}
	if got := MoneyFromDecimal(decimal.RequireFromString("20.835")); got.Cents != 2084 {
		t.Fatalf("MoneyFromDecimal rounding = %d, want 2084", got.Cents)
	}
}

func TestFormatEuros(t *testing.T) {
	cases := map[int64]string{0: "€0,00", 1234: "€12,34", -5: "-€0,05", 10000000: "€100000,00"}
	for in, want := range cases {
		if got := FormatEuros(in); got != want {
			t.Errorf("FormatEuros(%d) = %q, want %q", in, got, want)
		}
	}
	if got := FormatPlain(-1205); got != "-12.05" {
		t.Errorf("FormatPlain = %q", got)
	}
}
