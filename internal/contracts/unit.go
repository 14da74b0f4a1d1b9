package contracts

import "time"

// GenerationUnit is a dimension row describing one phase of physical
// equipment. The (source, code) key is not globally unique: successive
// equipment phases can reuse a code, each with its own validity window.
type GenerationUnit struct {
	ID         int64
	Source     string
	Code       string
	Name       string
	CapacityMW *float64
	StartDate  *time.Time
	EndDate    *time.Time

	// FirstPowerDate, when set, takes precedence over StartDate as the
	// beginning of the operational window.
	FirstPowerDate *time.Time

	WindfarmID *int64

	// CommercialOperationalDate comes from the owning windfarm. Records
	// dated before it must not carry capacity or a capacity factor.
	CommercialOperationalDate *time.Time
}

// OperationalAt reports whether the unit's validity window contains the
// given date. Comparison is at date granularity; an unset lower bound
// means the unit has always existed, an unset end date means it is
// still active.
func (u *GenerationUnit) OperationalAt(at time.Time) bool {
	day := toDate(at)

	start := u.FirstPowerDate
	if start == nil {
		start = u.StartDate
	}
	if start != nil && day.Before(toDate(*start)) {
		return false
	}

	if u.EndDate != nil && day.After(toDate(*u.EndDate)) {
		return false
	}

	return true
}

// PreCommercialAt reports whether the given date precedes the owning
// windfarm's commercial operational date.
func (u *GenerationUnit) PreCommercialAt(at time.Time) bool {
	if u.CommercialOperationalDate == nil {
		return false
	}
	return toDate(at).Before(toDate(*u.CommercialOperationalDate))
}

func toDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
