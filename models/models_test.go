package models

import (
	"errors"
	"testing"
)

func TestPeriodNextPrev(t *testing.T) {
	cases := []struct {
		in, next, prev Period
	}{
		{Period{2024, 1}, Period{2024, 2}, Period{2023, 4}},
		{Period{2024, 3}, Period{2024, 4}, Period{2024, 2}},
		{Period{2024, 4}, Period{2025, 1}, Period{2024, 3}},
	}
	for _, c := range cases {
		if got := c.in.Next(); got != c.next {
			t.Errorf("%s.Next() = %s, want %s", c.in, got, c.next)
		}
		if got := c.in.Prev(); got != c.prev {
			t.Errorf("%s.Prev() = %s, want %s", c.in, got, c.prev)
		}
	}
}

func TestPeriodOrdering(t *testing.T) {
	if !(Period{2023, 4}).Before(Period{2024, 1}) {
		t.Fatalf("2023-QTR4 should sort before 2024-QTR1")
	}
	if (Period{2024, 2}).Before(Period{2024, 2}) {
		t.Fatalf("period should not sort before itself")
	}
	if got := (Period{2024, 3}).String(); got != "2024-QTR3" {
		t.Fatalf("unexpected string: %s", got)
	}
}

func TestNewPeriodRejectsBadQuarter(t *testing.T) {
	for _, q := range []int{0, 5} {
		if _, err := NewPeriod(2024, q); !errors.Is(err, ErrInvalidPeriod) {
			t.Errorf("quarter %d: expected ErrInvalidPeriod, got %v", q, err)
		}
	}
	if _, err := NewPeriod(2024, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRawHoldingFieldsLengths(t *testing.T) {
	r := RawHoldingFields{
		IssuerNames:      []string{"a", "b"},
		TitlesOfClass:    []string{"c"},
		CUSIPs:           []string{"1", "2", "3"},
		Values:           nil,
		ShareAmounts:     []string{"x"},
		ShareAmountTypes: []string{"SH", "SH"},
	}
	want := []int{2, 1, 3, 0, 1, 2}
	got := r.Lengths()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Lengths() = %v, want %v", got, want)
		}
	}
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2023-QTR4")
	if err != nil {
		t.Fatalf("ParsePeriod: %v", err)
	}
	if p != (Period{Year: 2023, Quarter: 4}) {
		t.Fatalf("unexpected period: %+v", p)
	}
	for _, bad := range []string{"2023-QTR5", "2023Q1", "2023-QTR1x", ""} {
		if _, err := ParsePeriod(bad); !errors.Is(err, ErrInvalidPeriod) {
			t.Errorf("ParsePeriod(%q): expected ErrInvalidPeriod, got %v", bad, err)
		}
	}
}
