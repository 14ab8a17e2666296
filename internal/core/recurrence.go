package core

import (
	"fmt"
	"time"
)

// RecurrenceStep computes the next occurrence of a recurring transaction.
// Each interval has its own implementation, looked up through the registry below.
type RecurrenceStep interface {
	Next(from time.Time) time.Time
}

// DailyStep advances by one calendar day.
type DailyStep struct{}

func (DailyStep) Next(from time.Time) time.Time { return from.AddDate(0, 0, 1) }

// WeeklyStep advances by seven calendar days.
type WeeklyStep struct{}

func (WeeklyStep) Next(from time.Time) time.Time { return from.AddDate(0, 0, 7) }

// MonthlyStep advances by one calendar month. The day is clipped to the
// length of the target month, so Jan 31 steps to Feb 28 (or 29).
type MonthlyStep struct{}

func (MonthlyStep) Next(from time.Time) time.Time { return addMonthsClipped(from, 1) }

// YearlyStep advances by one calendar year. Feb 29 steps to Feb 28.
type YearlyStep struct{}

func (YearlyStep) Next(from time.Time) time.Time { return addMonthsClipped(from, 12) }

func addMonthsClipped(from time.Time, months int) time.Time {
	y, m, d := from.Date()
	target := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	if last := DaysInMonth(target.Year(), target.Month()); d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d,
		from.Hour(), from.Minute(), from.Second(), from.Nanosecond(), from.Location())
}

var recurrenceSteps = map[RecurringInterval]RecurrenceStep{
	Daily:   DailyStep{},
	Weekly:  WeeklyStep{},
	Monthly: MonthlyStep{},
	Yearly:  YearlyStep{},
}

// GetRecurrenceStep returns the step for an interval or ErrUnknownInterval.
func GetRecurrenceStep(interval RecurringInterval) (RecurrenceStep, error) {
	step, ok := recurrenceSteps[interval]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInterval, interval)
	}
	return step, nil
}

// NextRecurringDate returns the first occurrence strictly after date.
func NextRecurringDate(date time.Time, interval RecurringInterval) (time.Time, error) {
	step, err := GetRecurrenceStep(interval)
	if err != nil {
		return time.Time{}, err
	}
	return step.Next(date), nil
}

// IsDue reports whether a recurring template should produce a copy at now.
// A template that was never processed is always due.
func (t Transaction) IsDue(now time.Time) bool {
	if !t.IsRecurring || t.Status != StatusCompleted {
		return false
	}
	if t.LastProcessed == nil {
		return true
	}
	if t.NextRecurringDate == nil {
		return true
	}
	return !t.NextRecurringDate.After(now)
}
