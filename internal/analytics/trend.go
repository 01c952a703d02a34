package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"purchasing/internal/core"
)

// TrendHeader is the header row of the trend matrix.
var TrendHeader = []string{"", "W1", "W2", "W3", "W4", "W5", "Exception"}

const weeksPerMonth = 5

// monthBucket holds one calendar month of spend.
type monthBucket struct {
	year      int
	month     int
	weeks     [weeksPerMonth]decimal.Decimal
	exception decimal.Decimal
}

// WeekOfMonth maps a day of the month to its 1..5 week slot.
func WeekOfMonth(day int) int {
	if day < 1 {
		return 1
	}
	w := (day-1)/7 + 1
	if w > weeksPerMonth {
		return weeksPerMonth
	}
	return w
}

// BucketTrend groups normal spend by month and week-of-month and exception
// spend by month. Rows come out in chronological order; zero cells are blank.
// Entries with a zero date are skipped.
func BucketTrend(entries []core.CostEntry) core.TrendTable {
	buckets := make(map[int]*monthBucket)
	for _, e := range entries {
		if e.Date.IsZero() {
			continue
		}
		key := e.Date.MonthIndex()
		b, ok := buckets[key]
		if !ok {
			b = &monthBucket{year: e.Date.Year(), month: e.Date.Month()}
			buckets[key] = b
		}
		if e.Exception {
			b.exception = b.exception.Add(e.Cost)
			continue
		}
		w := WeekOfMonth(e.Date.Day()) - 1
		b.weeks[w] = b.weeks[w].Add(e.Cost)
	}

	keys := make([]int, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	table := core.TrendTable{
		Header: append([]string(nil), TrendHeader...),
		Rows:   make([][]string, 0, len(keys)),
	}
	for _, k := range keys {
		b := buckets[k]
		row := make([]string, 0, len(TrendHeader))
		row = append(row, MonthLabel(b.year, b.month))
		for _, w := range b.weeks {
			row = append(row, formatCell(w))
		}
		row = append(row, formatCell(b.exception))
		table.Rows = append(table.Rows, row)
	}
	return table
}

// MonthLabel renders "January 2025".
func MonthLabel(year, month int) string {
	return fmt.Sprintf("%s %d", time.Month(month).String(), year)
}

func formatCell(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.Round(2).String()
}

// ExceptionClassifier decides whether a purchasing context is non-standard.
type ExceptionClassifier func(context string) bool

// StandardLocations returns a classifier that treats any context containing
// one of names (case-insensitive) as standard and everything else as an
// exception. With no names nothing is an exception.
func StandardLocations(names ...string) ExceptionClassifier {
	var needles []string
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			needles = append(needles, n)
		}
	}
	return func(context string) bool {
		if len(needles) == 0 {
			return false
		}
		c := strings.ToLower(context)
		for _, n := range needles {
			if strings.Contains(c, n) {
				return false
			}
		}
		return true
	}
}

// exceptionMarks are flag cell values that mark a row as exception spend.
var exceptionMarks = map[string]bool{
	Badge: true,
	"yes":  true,
	"y":    true,
	"true": true,
	"x":    true,
}

// IsException resolves the exception flag for a history row: an explicit
// flag cell wins, otherwise the classifier judges the title.
func IsException(flag, title string, classify ExceptionClassifier) bool {
	if f := strings.ToLower(strings.TrimSpace(flag)); f != "" {
		return exceptionMarks[f]
	}
	if classify == nil {
		return false
	}
	return classify(title)
}
