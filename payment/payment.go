package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v3"
	"github.com/shopspring/decimal"
)

// Payment is one attempt to settle an invoice through a gateway. Every
// attempt is recorded, declined ones included; a row is written before the
// gateway is called so a crash mid-charge leaves a PENDING trace.
type Payment struct {
	ID                string          `json:"id" gorm:"primaryKey"`
	TransactionID     string          `json:"transactionId" gorm:"uniqueIndex"`
	InvoiceID         string          `json:"invoiceId" gorm:"index"`
	UserID            string          `json:"userId" gorm:"index"`
	UserEmail         string          `json:"userEmail"`
	InvoiceNumber     string          `json:"invoiceNumber"`
	Amount            decimal.Decimal `json:"amount" gorm:"type:decimal(12,2)"`
	RefundedAmount    decimal.Decimal `json:"refundedAmount" gorm:"type:decimal(12,2)"`
	Currency          string          `json:"currency"`
	Method            string          `json:"method"`
	Gateway           string          `json:"gateway"`
	Status            Status          `json:"status" gorm:"index"`
	ExternalPaymentID string          `json:"externalPaymentId"`
	RefundID          string          `json:"refundId"`
	RefundReason      string          `json:"refundReason"`
	FailureReason     string          `json:"failureReason"`
	ProcessedAt       *time.Time      `json:"processedAt"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// NewTransactionID generates a human-facing transaction reference such as
// TXN-K4D9W2QX7M3F
func NewTransactionID() string {
	suffix := strings.ToUpper(shortuuid.New())[:12]
	return fmt.Sprintf("TXN-%s", suffix)
}
