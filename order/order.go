package order

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentOrder is the checkout handshake that fronts a paid subscription.
// The client initiates an order, completes payment out of band, and comes
// back with the payment id and a signature over the pair. Only a verified
// order clears the subscription payment gate.
type PaymentOrder struct {
	ID                string          `json:"id" gorm:"primaryKey"`
	ExternalID        string          `json:"externalId" gorm:"uniqueIndex"`
	UserID            string          `json:"userId" gorm:"index"`
	UserEmail         string          `json:"userEmail"`
	PlanID            string          `json:"planId"`
	PlanName          string          `json:"planName"`
	Amount            decimal.Decimal `json:"amount" gorm:"type:decimal(12,2)"`
	Currency          string          `json:"currency"`
	Status            Status          `json:"status"`
	ExternalPaymentID string          `json:"externalPaymentId"`
	Signature         string          `json:"-"`
	FailureReason     string          `json:"failureReason"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// newExternalID generates the client-facing order reference, such as
// order_3f9c21ab40de77
func newExternalID() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "order_" + hex[:14]
}
