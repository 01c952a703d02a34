// Package core provides money and field parsing utilities.
//
// This file contains the lenient converters used at the acquisition boundary
// to turn spreadsheet cell values into typed fields.
package core

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Spreadsheet serial dates count days from this epoch.
var sheetEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

var leadingDigits = regexp.MustCompile(`^\s*(\d+)`)

var sheetDateLayouts = []string{"1/2/2006", "01/02/2006", "2006-01-02", "2006/01/02"}

// ParseAmount converts a currency cell into a decimal amount.
//
// It strips currency symbols and whitespace and treats commas as thousands
// separators, except for a single comma followed by one or two digits which
// is read as a decimal comma.
//
// Examples:
//
//	ParseAmount("$1,234.50") -> 1234.5, nil
//	ParseAmount("12,34")     -> 12.34, nil
//	ParseAmount("-7")        -> -7, nil
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("$", "", "€", "", "£", "", " ", "").Replace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		if i := strings.LastIndex(s, ","); !strings.Contains(s, ".") && strings.Count(s, ",") == 1 && len(s)-i-1 <= 2 {
			s = s[:i] + "." + s[i+1:]
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseQuantity converts a quantity cell ("3", "3.0", "1,200") into an integer,
// truncating any fractional part.
func ParseQuantity(s string) (int, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, ErrInvalidQuantity
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrInvalidQuantity
	}
	return int(f), nil
}

// ParseDeliveryDays reads the leading integer of an "Arrived In" cell such as "12 days".
func ParseDeliveryDays(s string) (int, bool) {
	m := leadingDigits.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseSheetDate accepts the shapes a spreadsheet hands back for a date cell:
// a serial day number (float or numeric string), m/d/Y, or Y-m-d. A trailing
// time component ("01/02/2025 10:30 AM") is ignored.
func ParseSheetDate(v any) (Date, error) {
	switch x := v.(type) {
	case nil:
		return Date{}, ErrInvalidDate
	case float64:
		return serialDate(x)
	case int:
		return serialDate(float64(x))
	case int64:
		return serialDate(float64(x))
	case time.Time:
		return DateOf(x), nil
	case Date:
		return x, nil
	}

	s := strings.TrimSpace(toString(v))
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	if fields := strings.Fields(s); len(fields) > 1 {
		s = fields[0]
	}
	for _, layout := range sheetDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return serialDate(f)
	}
	return Date{}, ErrInvalidDate
}

func serialDate(f float64) (Date, error) {
	if f < 1 || math.IsNaN(f) || math.IsInf(f, 0) {
		return Date{}, ErrInvalidDate
	}
	return DateOf(sheetEpoch.AddDate(0, 0, int(f))), nil
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
