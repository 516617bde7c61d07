/**
 * @description
 * Contribution classification. A subscriber's cycle restarts every month on the
 * anniversary of their registration day; the position of "today" inside that cycle
 * decides whether a contribution is the cycle FEE, an ICA (investment) deposit, or
 * a PIGGY (flexible savings) deposit.
 *
 * @notes
 * - Classify is pure: no clock, no I/O. Callers pass the business-timezone date.
 * - When the registration day does not exist in a month (the 31st in April, the 30th
 *   in February) the cycle anchors on that month's last day.
 */
package policy

import (
	"errors"
	"fmt"
	"time"

	"github.com/dewbox/contribution-service/internal/domain"
)

const (
	DefaultFeeDays = 1
	DefaultICADays = 10

	// shortestMonth bounds FeeDays+ICADays so every cycle keeps all its windows.
	shortestMonth = 28
)

var ErrClassificationInput = errors.New("invalid classification input")

// ClassificationInputError means the stored subscriber data cannot be classified.
// It indicates corruption rather than bad user input.
type ClassificationInputError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ClassificationInputError) Error() string {
	return fmt.Sprintf("invalid classification input %s=%s: %s", e.Field, e.Value, e.Reason)
}

func (e *ClassificationInputError) Is(target error) bool {
	return target == ErrClassificationInput
}

// Policy holds the bucket boundaries of a cycle.
type Policy struct {
	FeeDays int
	ICADays int
	// OverrideAppliesToFeeDay makes ALL_ICA classify the fee day as ICA too.
	OverrideAppliesToFeeDay bool
}

// Default is one fee day followed by ten ICA days; the rest of the cycle is PIGGY.
func Default() Policy {
	return Policy{FeeDays: DefaultFeeDays, ICADays: DefaultICADays}
}

// New validates custom boundaries.
func New(feeDays, icaDays int, overrideAppliesToFeeDay bool) (Policy, error) {
	if feeDays < 1 {
		return Policy{}, fmt.Errorf("fee days must be at least 1, got %d", feeDays)
	}
	if icaDays < 0 {
		return Policy{}, fmt.Errorf("ica days must not be negative, got %d", icaDays)
	}
	if feeDays+icaDays > shortestMonth {
		return Policy{}, fmt.Errorf("fee days + ica days must fit in %d days, got %d", shortestMonth, feeDays+icaDays)
	}
	return Policy{FeeDays: feeDays, ICADays: icaDays, OverrideAppliesToFeeDay: overrideAppliesToFeeDay}, nil
}

// Classify maps a registration day, a calendar date, and the subscriber's override
// mode to exactly one of FEE, ICA, or PIGGY.
func (p Policy) Classify(registrationDay int, today time.Time, mode domain.OverrideMode) (domain.ContributionType, error) {
	if registrationDay < 1 || registrationDay > 31 {
		return "", &ClassificationInputError{Field: "registration_day", Value: fmt.Sprint(registrationDay), Reason: "must be between 1 and 31"}
	}
	if today.IsZero() {
		return "", &ClassificationInputError{Field: "date", Value: "zero", Reason: "date is required"}
	}
	if !mode.Valid() {
		return "", &ClassificationInputError{Field: "override_mode", Value: string(mode), Reason: "unknown mode"}
	}

	delta := DayOfCycle(registrationDay, today)

	if delta < p.FeeDays {
		if mode == domain.OverrideAllICA && p.OverrideAppliesToFeeDay {
			return domain.ContributionICA, nil
		}
		return domain.ContributionFee, nil
	}
	if mode == domain.OverrideAllICA {
		return domain.ContributionICA, nil
	}
	if delta < p.FeeDays+p.ICADays {
		return domain.ContributionICA, nil
	}
	return domain.ContributionPiggy, nil
}

// DayOfCycle returns how many days have passed since the most recent anniversary of
// registrationDay on or before today (0 on the anniversary itself, at most 30).
func DayOfCycle(registrationDay int, today time.Time) int {
	start := CycleStart(registrationDay, today)
	y, m, d := today.Date()
	return daysBetween(start, time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// CycleStart returns the anniversary date that opened the cycle containing today.
func CycleStart(registrationDay int, today time.Time) time.Time {
	y, m, d := today.Date()
	anchor := anniversary(y, m, registrationDay)
	if anchor.Day() > d {
		anchor = anniversary(y, m-1, registrationDay)
	}
	return anchor
}

// anniversary clamps day to the month length; month 0 normalizes to December of y-1.
func anniversary(year int, month time.Month, day int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
