package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateHelpers(t *testing.T) {
	d := NewDate(2024, 1, 31)
	if got := d.DaysUntil(NewDate(2024, 3, 1)); got != 30 {
		t.Fatalf("DaysUntil = %d, want 30", got)
	}
	if got := NewDate(2024, 3, 1).DaysUntil(d); got != -30 {
		t.Fatalf("DaysUntil backwards = %d, want -30", got)
	}
	if got := d.MonthIndex() - NewDate(2023, 11, 5).MonthIndex(); got != 2 {
		t.Fatalf("month distance = %d, want 2", got)
	}
	if d.String() != "2024-01-31" || (Date{}).String() != "" {
		t.Fatalf("unexpected String(): %q", d.String())
	}
	local := time.Date(2024, 5, 6, 23, 59, 0, 0, time.FixedZone("X", -5*3600))
	if got := DateOf(local); got != NewDate(2024, 5, 6) {
		t.Fatalf("DateOf = %v", got)
	}
}

func TestEventValidate(t *testing.T) {
	neg := decimal.NewFromInt(-1)
	good := Event{ItemID: "A-1", Date: NewDate(2025, 1, 1)}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Event{
		{ItemID: "", Date: NewDate(2025, 1, 1)},
		{ItemID: "A-1"},
		{ItemID: "A-1", Date: NewDate(2025, 1, 1), UnitPrice: &neg},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestEventReceivedDate(t *testing.T) {
	days := 5
	e := Event{Date: NewDate(2024, 2, 27), DeliveryDays: &days}
	if got := e.ReceivedDate(); got != NewDate(2024, 3, 3) {
		t.Fatalf("ReceivedDate = %v", got)
	}
	if !(Event{Date: NewDate(2024, 2, 27)}).ReceivedDate().IsZero() {
		t.Fatalf("expected zero received date without delivery days")
	}
}

func TestReportKind(t *testing.T) {
	if !KindAll.Includes(KindTrend) || !KindSummary.Includes(KindSummary) || KindSummary.Includes(KindTrend) {
		t.Fatalf("unexpected Includes results")
	}
	if ReportKind("weekly").IsValid() {
		t.Fatalf("unknown kind should be invalid")
	}
}
