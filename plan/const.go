package plan

import "time"

// Cycle is the billing frequency of a Plan
type Cycle string

// Defining the supported billing cycles
const (
	CycleMonthly   Cycle = "MONTHLY"
	CycleQuarterly Cycle = "QUARTERLY"
	CycleYearly    Cycle = "YEARLY"
)

// Valid reports whether c is a supported billing cycle
func (c Cycle) Valid() bool {
	switch c {
	case CycleMonthly, CycleQuarterly, CycleYearly:
		return true
	default:
		return false
	}
}

// Advance returns the end of the billing period starting at t. The addition
// is calendar-aware, not a fixed day count.
func (c Cycle) Advance(t time.Time) time.Time {
	switch c {
	case CycleQuarterly:
		return t.AddDate(0, 3, 0)
	case CycleYearly:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 1, 0)
	}
}
