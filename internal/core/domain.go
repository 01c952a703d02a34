package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type (
	// Date is a calendar date pinned to UTC midnight.
	Date struct {
		time.Time
	}

	// Event is one observed fact about an item: a completed receipt line or an
	// outstanding order line. Events are immutable once produced by a reader.
	Event struct {
		ItemID       string
		Reference    string // item link, first one seen wins
		PONumber     string
		POURL        string
		Description  string
		Date         Date
		Quantity     int
		UnitPrice    *decimal.Decimal
		DeliveryDays *int
		Exception    bool
	}

	// CostEntry is one historical requisition total used for trend bucketing.
	CostEntry struct {
		Reference string
		URL       string
		Title     string
		Date      Date
		Cost      decimal.Decimal
		Exception bool
	}

	// SummaryRow is the per-item result of an aggregation run.
	SummaryRow struct {
		ItemID           string
		Reference        string
		Name             string
		DeliveryDays     string // rounded median, "" when no samples
		QuantityPerOrder int
		Cadence          string
		SpanMonths       int
		AvgQtyPerMonth   int
		TotalQuantity    int
		EventCount       int
		UnitPrice        decimal.Decimal
		MonthlyCost      decimal.Decimal
		Recurring        bool
		LastOrdered      string
	}

	// TrendTable is a dense header + rows matrix ready for tabular rendering.
	TrendTable struct {
		Header []string
		Rows   [][]string
	}
)

var (
	ErrInvalidDay      = errors.New("invalid day")
	ErrInvalidMonth    = errors.New("invalid month")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidDate     = errors.New("invalid date")
	ErrZeroDate        = errors.New("date cannot be zero")
	ErrEmptyItemID     = errors.New("empty item id")
	ErrRunNotFound     = errors.New("report run not found")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// MonthIndex returns a monotonically increasing month counter (year*12 + month-1).
func (d Date) MonthIndex() int {
	return d.Year()*12 + d.Month() - 1
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the clock part of t, keeping its calendar date.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Today returns the current calendar date in local time.
func Today() Date {
	return DateOf(time.Now())
}

// DaysUntil returns the number of whole days from d to other (negative if other is earlier).
func (d Date) DaysUntil(other Date) int {
	return int(other.Sub(d.Time) / (24 * time.Hour))
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// String renders the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// ParseISODate parses a YYYY-MM-DD string.
func ParseISODate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return DateOf(t), nil
}

// ReceivedDate is the order date shifted by the delivery time, when both are known.
func (e Event) ReceivedDate() Date {
	if e.Date.IsZero() || e.DeliveryDays == nil {
		return Date{}
	}
	return e.Date.AddDays(*e.DeliveryDays)
}

// Validate checks the fields required to join an event onto an item record.
func (e Event) Validate() error {
	if strings.TrimSpace(e.ItemID) == "" {
		return ErrEmptyItemID
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if e.UnitPrice != nil && e.UnitPrice.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

func (c CostEntry) Validate() error {
	if err := c.Date.Validate(); err != nil {
		return err
	}
	return nil
}
