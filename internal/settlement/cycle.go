package settlement

import (
	"fmt"
	"time"
)

const minutesPerDay = 24 * 60

// NormalizeCycleTime folds a minute-of-day offset into [0, 1440).
func NormalizeCycleTime(minutes int) int {
	if minutes <= 0 {
		return 0
	}
	normalized := minutes % minutesPerDay
	if normalized < 0 {
		normalized += minutesPerDay
	}
	return normalized
}

// TimeLabel renders a minute-of-day offset as "HH:mm" for display.
func TimeLabel(minutes int) string {
	normalized := NormalizeCycleTime(minutes)
	return fmt.Sprintf("%02d:%02d", normalized/60, normalized%60)
}

// ComputeNextDue returns the next cycle boundary strictly after anchor, or
// nil when billing is disabled (cycleDays <= 0).
//
// The candidate is anchor's date plus cycleDays with the time of day replaced
// by the cycle minute offset. When the offset lands the candidate at or
// before the anchor, one more full cycle is added so the result always moves
// forward.
func ComputeNextDue(anchor time.Time, cycleDays, cycleTimeMinutes int) *time.Time {
	if cycleDays <= 0 {
		return nil
	}

	anchor = anchor.UTC()
	candidate := atBoundary(anchor.AddDate(0, 0, cycleDays), cycleTimeMinutes)
	if !candidate.After(anchor) {
		candidate = candidate.AddDate(0, 0, cycleDays)
	}
	return &candidate
}

// AlignToPreviousBoundary returns the most recent cycle boundary at or before
// reference: today's boundary, or yesterday's when today's has not passed yet.
func AlignToPreviousBoundary(reference time.Time, cycleTimeMinutes int) time.Time {
	reference = reference.UTC()
	boundary := atBoundary(reference, cycleTimeMinutes)
	if boundary.After(reference) {
		boundary = boundary.AddDate(0, 0, -1)
	}
	return boundary
}

// atBoundary replaces the time of day with the cycle minute offset.
func atBoundary(reference time.Time, cycleTimeMinutes int) time.Time {
	normalized := NormalizeCycleTime(cycleTimeMinutes)
	y, m, d := reference.UTC().Date()
	return time.Date(y, m, d, normalized/60, normalized%60, 0, 0, time.UTC)
}

// IsDue reports whether a cycle boundary has been reached.
func IsDue(nextDueAt *time.Time, effectiveDays int, now time.Time) bool {
	return effectiveDays > 0 && nextDueAt != nil && !nextDueAt.After(now.UTC())
}
