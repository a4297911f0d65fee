package models

import "math"

// PlanType identifies a subscription tier. Ordinal values are persisted,
// so the order is part of the storage format.
type PlanType int

const (
	PlanFree PlanType = iota
	PlanStarter
	PlanPro
	PlanEnterprise
)

// DailyLimit returns the daily request budget for the plan.
// Enterprise is unbounded and reports the maximum representable value.
func (p PlanType) DailyLimit() int {
	switch p {
	case PlanFree:
		return 100
	case PlanStarter:
		return 1000
	case PlanPro:
		return 10000
	case PlanEnterprise:
		return math.MaxInt
	default:
		return 100
	}
}

// MaxAPIKeys returns how many keys (active or revoked) a user on this
// plan may hold at once.
func (p PlanType) MaxAPIKeys() int {
	if p == PlanFree {
		return 5
	}
	return 10
}

func (p PlanType) String() string {
	switch p {
	case PlanFree:
		return "Free"
	case PlanStarter:
		return "Starter"
	case PlanPro:
		return "Pro"
	case PlanEnterprise:
		return "Enterprise"
	default:
		return "Free"
	}
}
