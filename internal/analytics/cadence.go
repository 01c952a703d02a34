package analytics

import (
	"fmt"
	"sort"

	"purchasing/internal/core"
)

// LastOrderDate returns the most recent date as YYYY-MM-DD, or "" when there is none.
func LastOrderDate(dates []core.Date) string {
	var last core.Date
	for _, d := range dates {
		if d.After(last.Time) {
			last = d
		}
	}
	return last.String()
}

// MedianGap returns the median number of days between consecutive distinct
// dates. ok is false when fewer than two distinct dates exist.
func MedianGap(dates []core.Date) (gap float64, ok bool) {
	uds := distinctSorted(dates)
	if len(uds) < 2 {
		return 0, false
	}
	gaps := make([]int, 0, len(uds)-1)
	for i := 1; i < len(uds); i++ {
		gaps = append(gaps, uds[i-1].DaysUntil(uds[i]))
	}
	return medianInts(gaps)
}

// FrequencyLabel renders the human cadence for an item:
//
//	no dates          -> ""
//	one distinct date -> "Once — N days ago"
//	badged            -> "lasts G days" (G = median gap)
//	otherwise         -> "last ordered N days ago"
//
// N counts days from the latest date to today, never below zero.
func FrequencyLabel(dates []core.Date, badged bool, today core.Date) string {
	uds := distinctSorted(dates)
	if len(uds) == 0 {
		return ""
	}
	daysAgo := uds[len(uds)-1].DaysUntil(today)
	if daysAgo < 0 {
		daysAgo = 0
	}
	once := fmt.Sprintf("Once — %d days ago", daysAgo)
	if len(uds) == 1 {
		return once
	}
	if badged {
		gap, ok := MedianGap(uds)
		if !ok || int(gap) <= 0 {
			return once
		}
		return fmt.Sprintf("lasts %d days", int(gap))
	}
	return fmt.Sprintf("last ordered %d days ago", daysAgo)
}

func distinctSorted(dates []core.Date) []core.Date {
	seen := make(map[core.Date]struct{}, len(dates))
	out := make([]core.Date, 0, len(dates))
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j].Time) })
	return out
}
