// Package analytics computes per-item purchasing statistics and cost trends.
//
// This file implements the Strategy Pattern for the recurring-order badge.
// Each policy decides, from an item's cadence statistics, whether the item is
// a predictable repeat purchase. The aggregator applies the minimum-history
// guard before any policy is consulted.
package analytics

import (
	"fmt"
	"sort"
)

// RecurrenceStats is what a policy sees about one item.
type RecurrenceStats struct {
	EventCount     int
	SpanMonths     int
	DistinctMonths int
	MedianGapDays  float64
	HasGap         bool
}

// CoverageRatio is the fraction of the active span with at least one order.
func (s RecurrenceStats) CoverageRatio() float64 {
	if s.SpanMonths <= 0 {
		return 0
	}
	return float64(s.DistinctMonths) / float64(s.SpanMonths)
}

// RecurrencePolicy is the strategy interface for the recurring-order badge.
type RecurrencePolicy interface {
	// IsRecurring reports whether the item earns the badge.
	IsRecurring(s RecurrenceStats) bool
}

// ThresholdPolicy badges an item when either its month coverage or its
// median order gap crosses a threshold.
type ThresholdPolicy struct {
	MinCoverage  float64
	MaxMedianGap float64
}

// IsRecurring implements RecurrencePolicy.
func (p ThresholdPolicy) IsRecurring(s RecurrenceStats) bool {
	if s.CoverageRatio() >= p.MinCoverage {
		return true
	}
	return s.HasGap && s.MedianGapDays <= p.MaxMedianGap
}

// CoveragePolicy only looks at month coverage.
type CoveragePolicy struct {
	MinCoverage float64
}

// IsRecurring implements RecurrencePolicy.
func (p CoveragePolicy) IsRecurring(s RecurrenceStats) bool {
	return s.CoverageRatio() >= p.MinCoverage
}

// DefaultRecurrencePolicy: covered in 80% of months, or reordered every 45 days or less.
var DefaultRecurrencePolicy RecurrencePolicy = ThresholdPolicy{MinCoverage: 0.80, MaxMedianGap: 45}

// Minimum history before any policy is consulted.
const (
	minBadgeEvents = 2
	minBadgeSpan   = 3
)

func eligibleForBadge(s RecurrenceStats) bool {
	return s.EventCount >= minBadgeEvents && s.SpanMonths >= minBadgeSpan
}

// policies maps names usable from configuration to their strategies.
var policies = map[string]RecurrencePolicy{
	"default":  DefaultRecurrencePolicy,
	"coverage": CoveragePolicy{MinCoverage: 0.80},
	"strict":   ThresholdPolicy{MinCoverage: 0.95, MaxMedianGap: 31},
}

// GetRecurrencePolicy returns the policy registered under name.
func GetRecurrencePolicy(name string) (RecurrencePolicy, error) {
	p, ok := policies[name]
	if !ok {
		return nil, fmt.Errorf("unknown recurrence policy: %s", name)
	}
	return p, nil
}

// RegisterRecurrencePolicy adds or replaces a named policy.
// Call it during start-up only; the registry is not synchronized.
func RegisterRecurrencePolicy(name string, p RecurrencePolicy) {
	policies[name] = p
}

// RecurrencePolicyNames lists the registered policy names in order.
func RecurrencePolicyNames() []string {
	names := make([]string, 0, len(policies))
	for name := range policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
