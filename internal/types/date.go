package types

import (
	"time"

	ierr "github.com/forgia-ai/bank-convert-billing/internal/errors"
)

// LifetimePeriodStart keys the single usage record of a non-rolling (free)
// plan. Free usage accumulates forever, so the whole account history is one
// period anchored at the Unix epoch.
var LifetimePeriodStart = time.Unix(0, 0).UTC()

// LifetimePeriodEnd is the far-future end of the free plan's single period.
var LifetimePeriodEnd = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// ComputeBillingPeriod returns the current billing window [start, end] for a
// rolling monthly plan anchored at the subscription start date.
//
// The anchor's day-of-month is clamped independently against every target
// month: a subscription started on the 31st bills on the 28th (or 29th) of
// February and on the 30th of April, never drifting off the 31st for months
// that have one. The period end is the day before the next period's own
// clamped boundary.
//
// All computation happens in UTC. Callers holding local times must convert
// before calling, not after.
func ComputeBillingPeriod(anchor time.Time, now time.Time) (time.Time, time.Time, error) {
	anchor = anchor.UTC()
	now = now.UTC()

	if anchor.After(now) {
		return time.Time{}, time.Time{}, ierr.NewError("billing anchor is in the future").
			WithHint("Subscription start date must not be after the current time").
			WithReportableDetails(map[string]any{
				"anchor": anchor,
				"now":    now,
			}).
			Mark(ierr.ErrValidation)
	}

	anchorDay := anchor.Day()

	// Candidate boundary in the month of "now". If now is before it, the
	// running period started in the previous month (handles Dec -> Jan).
	year, month, _ := now.Date()
	candidate := clampedAnchorDate(year, month, anchorDay)

	startYear, startMonth := year, month
	if now.Before(candidate) {
		prev := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		startYear, startMonth = prev.Year(), prev.Month()
	}

	periodStart := clampedAnchorDate(startYear, startMonth, anchorDay)

	// The next boundary is clamped against its own month, not derived from
	// periodStart, so an anchor on the 31st never compounds February's clamp.
	next := time.Date(startYear, startMonth, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	nextBoundary := clampedAnchorDate(next.Year(), next.Month(), anchorDay)
	periodEnd := nextBoundary.AddDate(0, 0, -1)

	return periodStart, periodEnd, nil
}

// clampedAnchorDate returns midnight UTC of the anchor day in the given
// month, clamped to the month's last day when the anchor day does not exist
// in it (e.g. day 31 in April).
func clampedAnchorDate(year int, month time.Month, anchorDay int) time.Time {
	day := anchorDay
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// daysInMonth returns the number of days in the given month.
// Day zero of the following month normalizes to the last day of this one.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
