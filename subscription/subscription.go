package subscription

import (
	"time"
)

// Subscription ties a user to a plan for a billing period. UserEmail,
// PlanName, and PlanCurrency are snapshots taken when the subscription is
// created or the plan changes; they survive plan edits and deletion so
// history stays truthful.
type Subscription struct {
	ID                 string     `json:"id" gorm:"primaryKey"`
	UserID             string     `json:"userId" gorm:"index"`
	PlanID             string     `json:"planId" gorm:"index"`
	UserEmail          string     `json:"userEmail"`
	PlanName           string     `json:"planName"`
	PlanCurrency       string     `json:"planCurrency"`
	Status             Status     `json:"status" gorm:"index"`
	StartDate          time.Time  `json:"startDate"`
	EndDate            time.Time  `json:"endDate"`
	TrialEndDate       *time.Time `json:"trialEndDate"`
	NextBillingDate    time.Time  `json:"nextBillingDate"`
	AutoRenew          bool       `json:"autoRenew"`
	CancelledAt        *time.Time `json:"cancelledAt"`
	CancellationReason string     `json:"cancellationReason"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}
