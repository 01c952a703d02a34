package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"$1,234.50", "1234.5", true},
		{"1,23", "1.23", true},
		{"1,234", "1234", true},
		{" 2.50 ", "2.5", true},
		{"-7", "-7", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestParseQuantity(t *testing.T) {
	cases := []struct {
		in  string
		out int
		ok  bool
	}{
		{"3", 3, true},
		{"3.0", 3, true},
		{"1,200", 1200, true},
		{"2.9", 2, true},
		{"-4", -4, true},
		{"", 0, false},
		{"n/a", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseQuantity(tc.in)
		if tc.ok && (err != nil || got != tc.out) {
			t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestParseDeliveryDays(t *testing.T) {
	if n, ok := ParseDeliveryDays("12 days"); !ok || n != 12 {
		t.Fatalf("got %d %v", n, ok)
	}
	if _, ok := ParseDeliveryDays("pending"); ok {
		t.Fatalf("expected no match")
	}
}

func TestParseSheetDate(t *testing.T) {
	cases := []struct {
		in   any
		want Date
		ok   bool
	}{
		{"01/05/2024", NewDate(2024, 1, 5), true},
		{"1/5/2024", NewDate(2024, 1, 5), true},
		{"1/5/2024 10:30 AM", NewDate(2024, 1, 5), true},
		{"2024-01-05", NewDate(2024, 1, 5), true},
		{45296.0, NewDate(2024, 1, 5), true},
		{"45296", NewDate(2024, 1, 5), true},
		{"", Date{}, false},
		{"someday", Date{}, false},
		{nil, Date{}, false},
	}
	for _, tc := range cases {
		got, err := ParseSheetDate(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%v expected %v, got %v (err=%v)", tc.in, tc.want, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%v expected error", tc.in)
		}
	}
}
