package invoice

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice describes a charge against a subscription. User and plan facts are
// snapshotted at creation time and never updated when the source changes;
// an invoice reflects the world at the moment it was issued.
type Invoice struct {
	ID                 string          `json:"id" gorm:"primaryKey"`
	InvoiceNumber      string          `json:"invoiceNumber" gorm:"uniqueIndex"`
	UserID             string          `json:"userId" gorm:"index"`
	SubscriptionID     string          `json:"subscriptionId" gorm:"index"`
	UserEmail          string          `json:"userEmail"`
	UserName           string          `json:"userName"`
	PlanName           string          `json:"planName"`
	Amount             decimal.Decimal `json:"amount" gorm:"type:decimal(12,2)"`
	TaxAmount          decimal.Decimal `json:"taxAmount" gorm:"type:decimal(12,2)"`
	DiscountAmount     decimal.Decimal `json:"discountAmount" gorm:"type:decimal(12,2)"`
	TotalAmount        decimal.Decimal `json:"totalAmount" gorm:"type:decimal(12,2)"` // always amount + tax - discount
	Currency           string          `json:"currency"`
	Status             Status          `json:"status" gorm:"index"`
	InvoiceDate        time.Time       `json:"invoiceDate"`
	DueDate            time.Time       `json:"dueDate"`
	PaidDate           *time.Time      `json:"paidDate"`
	BillingPeriodStart time.Time       `json:"billingPeriodStart"`
	BillingPeriodEnd   time.Time       `json:"billingPeriodEnd"`
	Notes              string          `json:"notes"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// Subject identifies the subscription an invoice bills for, without
// depending on the subscription package
type Subject struct {
	SubscriptionID string
	PeriodStart    time.Time
	PeriodEnd      time.Time
}
