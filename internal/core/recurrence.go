// This file implements the Strategy Pattern for recurring transaction occurrences.
// Each frequency has its own checker deciding whether a target date is an
// occurrence of a recurrence anchored at a start date.

package core

import (
	"fmt"
	"slices"
)

// OccurrenceChecker decides if a recurrence anchored at start fires on target.
// Callers gate on target >= start; checkers only look at the calendar pattern.
type OccurrenceChecker interface {
	OccursOn(start, target Date) bool
}

// DailyChecker fires every day.
type DailyChecker struct{}

func (DailyChecker) OccursOn(start, target Date) bool {
	return !target.Before(start)
}

// WeeklyChecker fires every 7 days from the start date.
type WeeklyChecker struct{}

func (WeeklyChecker) OccursOn(start, target Date) bool {
	days := target.DaysSince(start)
	return days >= 0 && days%7 == 0
}

// MonthlyChecker fires on the start's day of month. Months that do not have
// that day (e.g. the 31st in April) are skipped.
type MonthlyChecker struct{}

func (MonthlyChecker) OccursOn(start, target Date) bool {
	return !target.Before(start) && target.Day() == start.Day()
}

// YearlyChecker fires on the start's month and day.
type YearlyChecker struct{}

func (YearlyChecker) OccursOn(start, target Date) bool {
	return !target.Before(start) &&
		target.Month() == start.Month() &&
		target.Day() == start.Day()
}

var occurrenceStrategies = map[Frequency]OccurrenceChecker{
	Daily:   DailyChecker{},
	Weekly:  WeeklyChecker{},
	Monthly: MonthlyChecker{},
	Yearly:  YearlyChecker{},
}

// GetOccurrenceChecker returns the checker for a frequency.
func GetOccurrenceChecker(f Frequency) (OccurrenceChecker, error) {
	checker, ok := occurrenceStrategies[f]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFrequency, string(f))
	}
	return checker, nil
}

// RegisterOccurrenceChecker adds or replaces the checker for a frequency.
// Not safe for use concurrently with projections; call it during init.
func RegisterOccurrenceChecker(f Frequency, checker OccurrenceChecker) {
	occurrenceStrategies[f] = checker
}

// Frequencies lists the registered frequencies for forms: the built-in ones
// from shortest to longest, then any registered extras sorted by name.
func Frequencies() []Frequency {
	out := []Frequency{Daily, Weekly, Monthly, Yearly}
	var extras []Frequency
	for f := range occurrenceStrategies {
		switch f {
		case Daily, Weekly, Monthly, Yearly:
			continue
		}
		extras = append(extras, f)
	}
	slices.Sort(extras)
	return append(out, extras...)
}
