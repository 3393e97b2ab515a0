package payment

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/miragespace/subpay/auth"
	"github.com/miragespace/subpay/money"
	resp "github.com/miragespace/subpay/response"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ServiceOptions contains the configuration for the payment Service
type ServiceOptions struct {
	Engine  *Engine
	Manager *Manager
	Logger  *zap.Logger
}

// Service is the payment API
type Service struct {
	ServiceOptions
	validate *validator.Validate
}

// NewService returns a new Service for payments
func NewService(option ServiceOptions) (*Service, error) {
	if option.Engine == nil {
		return nil, fmt.Errorf("nil Engine is invalid")
	}
	if option.Manager == nil {
		return nil, fmt.Errorf("nil Manager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
		validate:       validator.New(),
	}, nil
}

// ProcessPaymentRequest is the body for paying an invoice. Amount is a
// decimal string and must equal the invoice total.
type ProcessPaymentRequest struct {
	InvoiceID string `json:"invoiceId" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
	Method    string `json:"method"`
}

func (s *Service) process(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims := ctx.Value(auth.Context).(*auth.Claims)

	var req ProcessPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("invoiceId and amount are required"))
		return
	}

	amount, err := money.Parse(req.Amount)
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("amount must be a non-negative decimal"))
		return
	}

	p, err := s.Engine.Process(ctx, ProcessRequest{
		InvoiceID: req.InvoiceID,
		UserID:    claims.ID,
		Amount:    amount,
		Method:    req.Method,
	})
	if err != nil {
		resp.WriteError(w, r, resp.FromEngine(err))
		return
	}

	resp.WriteResponse(w, r, p)
}

func (s *Service) listMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims := ctx.Value(auth.Context).(*auth.Claims)

	payments, err := s.Manager.ListByUser(ctx, claims.ID)
	if err != nil {
		s.Logger.Error("Unable to list payments",
			zap.String("UserID", claims.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, payments)
}

func (s *Service) getByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims := ctx.Value(auth.Context).(*auth.Claims)
	paymentID := chi.URLParam(r, "id")

	p, err := s.Manager.GetByID(ctx, paymentID)
	if err != nil {
		s.Logger.Error("Unable to get payment",
			zap.String("PaymentID", paymentID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}
	if p == nil {
		resp.WriteError(w, r, resp.ErrNotFound())
		return
	}
	if p.UserID != claims.ID && claims.Role != auth.RoleAdmin {
		resp.WriteError(w, r, resp.ErrForbidden())
		return
	}

	resp.WriteResponse(w, r, p)
}

// RefundRequest optionally records why the refund was issued
type RefundRequest struct {
	Reason string `json:"reason"`
}

func (s *Service) refund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	paymentID := chi.URLParam(r, "id")

	var req RefundRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			resp.WriteError(w, r, resp.ErrInvalidJson())
			return
		}
	}

	p, err := s.Engine.Refund(ctx, paymentID, req.Reason)
	if err != nil {
		resp.WriteError(w, r, resp.FromEngine(err))
		return
	}

	resp.WriteResponse(w, r, p)
}

// Router returns the user-facing routes of the payment API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.process)
	r.Get("/", s.listMine)
	r.Get("/{id}", s.getByID)

	return r
}

// AdminRouter returns the operator routes of the payment API. The caller is
// expected to gate it behind the admin middleware.
func (s *Service) AdminRouter() http.Handler {
	r := chi.NewRouter()

	r.Post("/{id}/refund", s.refund)

	return r
}
