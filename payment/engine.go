package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/miragespace/subpay/apperror"
	"github.com/miragespace/subpay/gateway"
	"github.com/miragespace/subpay/invoice"
	"github.com/miragespace/subpay/notifier"

	"github.com/google/uuid"
	extErrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultChargeTimeout = 5 * time.Second

// Store is the persistence interface the engine operates over. *Manager
// satisfies it.
type Store interface {
	Create(ctx context.Context, p *Payment) error
	Update(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id string) (*Payment, error)
}

// Invoices is the slice of the invoice layer the engine needs to settle and
// refund invoices
type Invoices interface {
	GetByID(ctx context.Context, id string) (*invoice.Invoice, error)
	Update(ctx context.Context, inv *invoice.Invoice) error
}

// Options contains the configuration for the payment Engine
type Options struct {
	Store    Store
	Invoices Invoices
	Gateway  gateway.Client
	Notifier notifier.Notifier
	Logger   *zap.Logger
	// ChargeTimeout bounds each gateway call. Defaults to 5 seconds.
	ChargeTimeout time.Duration
}

// Engine processes payments against invoices. It is the only writer of
// payment status, and the only component allowed to move an invoice to PAID
// or REFUNDED with money attached.
type Engine struct {
	Options
}

// NewEngine returns a new Engine for payments
func NewEngine(option Options) (*Engine, error) {
	if option.Store == nil {
		return nil, fmt.Errorf("nil Store is invalid")
	}
	if option.Invoices == nil {
		return nil, fmt.Errorf("nil Invoices is invalid")
	}
	if option.Gateway == nil {
		return nil, fmt.Errorf("nil Gateway is invalid")
	}
	if option.Notifier == nil {
		return nil, fmt.Errorf("nil Notifier is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.ChargeTimeout <= 0 {
		option.ChargeTimeout = defaultChargeTimeout
	}
	return &Engine{
		Options: option,
	}, nil
}

// ProcessRequest describes a payment attempt against an invoice
type ProcessRequest struct {
	InvoiceID string
	// UserID, when non-empty, must match the invoice owner
	UserID string
	// Amount must equal the invoice total exactly
	Amount decimal.Decimal
	// Method defaults to card
	Method string
}

// Process attempts to settle an invoice. The attempt is recorded as PENDING
// before the gateway is called. A gateway decline leaves the invoice
// untouched and returns the FAILED payment; only a captured charge settles
// the invoice.
func (e *Engine) Process(ctx context.Context, req ProcessRequest) (*Payment, error) {
	inv, err := e.Invoices.GetByID(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, apperror.NotFound("invoice", "id", req.InvoiceID)
	}
	if req.UserID != "" && inv.UserID != req.UserID {
		return nil, apperror.Authorization("invoice does not belong to the user")
	}

	switch inv.Status {
	case invoice.StatusPending, invoice.StatusOverdue:
	case invoice.StatusPaid:
		return nil, apperror.InvalidState("invoice is already paid")
	default:
		return nil, apperror.InvalidState(fmt.Sprintf("invoice in status %s cannot be paid", inv.Status))
	}

	if !req.Amount.Equal(inv.TotalAmount) {
		return nil, apperror.Validation(fmt.Sprintf("payment amount %s does not match invoice total %s", req.Amount, inv.TotalAmount))
	}

	method := req.Method
	if method == "" {
		method = "card"
	}

	p := &Payment{
		ID:            uuid.New().String(),
		TransactionID: NewTransactionID(),
		InvoiceID:     inv.ID,
		UserID:        inv.UserID,
		UserEmail:     inv.UserEmail,
		InvoiceNumber: inv.InvoiceNumber,
		Amount:        inv.TotalAmount,
		Currency:      inv.Currency,
		Method:        method,
		Gateway:       e.Gateway.Name(),
		Status:        StatusPending,
	}
	if err := e.Store.Create(ctx, p); err != nil {
		return nil, err
	}

	logger := e.Logger.With(
		zap.String("TransactionID", p.TransactionID),
		zap.String("InvoiceNumber", inv.InvoiceNumber),
	)

	chargeCtx, cancel := context.WithTimeout(ctx, e.ChargeTimeout)
	defer cancel()

	now := time.Now()
	result, err := e.Gateway.Charge(chargeCtx, inv.InvoiceNumber, inv.TotalAmount, inv.Currency)
	if err != nil {
		p.Status = StatusFailed
		p.FailureReason = err.Error()
		p.ProcessedAt = &now
		if updateErr := e.Store.Update(ctx, p); updateErr != nil {
			logger.Error("Unable to record gateway failure",
				zap.Error(updateErr),
			)
		}
		logger.Error("Payment gateway returned error",
			zap.Error(err),
		)
		return nil, apperror.PaymentProcessing("payment could not be processed", err)
	}

	if !result.Success {
		p.Status = StatusFailed
		p.FailureReason = result.FailureReason
		p.ProcessedAt = &now
		if err := e.Store.Update(ctx, p); err != nil {
			return nil, err
		}
		logger.Info("Payment declined",
			zap.String("Reason", result.FailureReason),
		)
		return p, nil
	}

	p.Status = StatusSuccess
	p.ExternalPaymentID = result.PaymentID
	p.ProcessedAt = &now
	if err := e.Store.Update(ctx, p); err != nil {
		return nil, err
	}

	inv.Status = invoice.StatusPaid
	inv.PaidDate = &now
	if err := e.Invoices.Update(ctx, inv); err != nil {
		// money moved but the invoice write failed, flag for reconciliation
		logger.Error("Payment captured but invoice not settled",
			zap.String("ExternalPaymentID", result.PaymentID),
			zap.Error(err),
		)
		return nil, extErrors.Wrap(err, "payment captured but invoice not settled")
	}

	logger.Info("Payment captured",
		zap.String("ExternalPaymentID", result.PaymentID),
	)

	e.Notifier.Notify(notifier.Event{
		Kind:       notifier.KindPaymentSucceeded,
		OccurredAt: now,
		UserID:     p.UserID,
		UserEmail:  p.UserEmail,
		Payload: map[string]string{
			"transactionId": p.TransactionID,
			"invoiceNumber": p.InvoiceNumber,
			"amount":        p.Amount.String(),
			"currency":      p.Currency,
		},
	})

	return p, nil
}

// Refund reverses a captured payment in full and cascades the refund to the
// invoice. A gateway failure leaves both records untouched. The reason is
// optional and recorded verbatim.
func (e *Engine) Refund(ctx context.Context, paymentID, reason string) (*Payment, error) {
	p, err := e.Store.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperror.NotFound("payment", "id", paymentID)
	}
	if !CanTransition(p.Status, StatusRefunded) {
		return nil, apperror.InvalidState("only a successful payment can be refunded")
	}

	refundCtx, cancel := context.WithTimeout(ctx, e.ChargeTimeout)
	defer cancel()

	result, err := e.Gateway.Refund(refundCtx, p.ExternalPaymentID, p.Amount)
	if err != nil {
		e.Logger.Error("Refund gateway returned error",
			zap.String("TransactionID", p.TransactionID),
			zap.Error(err),
		)
		return nil, apperror.PaymentProcessing("refund could not be processed", err)
	}
	if !result.Success {
		return nil, apperror.PaymentProcessing(result.FailureReason, nil)
	}

	now := time.Now()
	p.Status = StatusRefunded
	p.RefundedAmount = p.Amount
	p.RefundID = result.RefundID
	p.RefundReason = reason
	if err := e.Store.Update(ctx, p); err != nil {
		return nil, err
	}

	inv, err := e.Invoices.GetByID(ctx, p.InvoiceID)
	if err == nil && inv != nil && inv.Status == invoice.StatusPaid {
		inv.Status = invoice.StatusRefunded
		if err := e.Invoices.Update(ctx, inv); err != nil {
			e.Logger.Error("Refund recorded but invoice not updated",
				zap.String("TransactionID", p.TransactionID),
				zap.Error(err),
			)
		}
	}

	e.Logger.Info("Payment refunded",
		zap.String("TransactionID", p.TransactionID),
		zap.String("RefundID", result.RefundID),
	)

	e.Notifier.Notify(notifier.Event{
		Kind:       notifier.KindPaymentRefunded,
		OccurredAt: now,
		UserID:     p.UserID,
		UserEmail:  p.UserEmail,
		Payload: map[string]string{
			"transactionId": p.TransactionID,
			"invoiceNumber": p.InvoiceNumber,
			"amount":        p.RefundedAmount.String(),
			"currency":      p.Currency,
		},
	})

	return p, nil
}
