package order

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/miragespace/subpay/auth"
	resp "github.com/miragespace/subpay/response"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ServiceOptions contains the configuration for the order Service
type ServiceOptions struct {
	Engine  *Engine
	Manager *Manager
	Logger  *zap.Logger
}

// Service is the payment order API
type Service struct {
	ServiceOptions
	validate *validator.Validate
}

// NewService returns a new Service for payment orders
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

// InitiateOrderRequest is the body for starting a checkout
type InitiateOrderRequest struct {
	PlanID string `json:"planId" validate:"required"`
}

// VerifyOrderRequest is the body for completing a checkout
type VerifyOrderRequest struct {
	OrderID   string `json:"orderId" validate:"required"`
	PaymentID string `json:"paymentId" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

func (s *Service) initiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims := ctx.Value(auth.Context).(*auth.Claims)

	var req InitiateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("planId is required"))
		return
	}

	result, err := s.Engine.Initiate(ctx, claims.ID, req.PlanID)
	if err != nil {
		resp.WriteError(w, r, resp.FromEngine(err))
		return
	}

	resp.WriteResponse(w, r, result)
}

func (s *Service) verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims := ctx.Value(auth.Context).(*auth.Claims)

	var req VerifyOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("orderId, paymentId and signature are required"))
		return
	}

	o, err := s.Manager.GetByExternalID(ctx, req.OrderID)
	if err != nil {
		s.Logger.Error("Unable to get payment order",
			zap.String("OrderID", req.OrderID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}
	if o == nil {
		resp.WriteError(w, r, resp.ErrNotFound())
		return
	}
	if o.UserID != claims.ID {
		resp.WriteError(w, r, resp.ErrForbidden())
		return
	}

	result, err := s.Engine.Verify(ctx, VerifyRequest{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		resp.WriteError(w, r, resp.FromEngine(err))
		return
	}

	resp.WriteResponse(w, r, result)
}

func (s *Service) listMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims := ctx.Value(auth.Context).(*auth.Claims)

	orders, err := s.Manager.ListByUser(ctx, claims.ID)
	if err != nil {
		s.Logger.Error("Unable to list payment orders",
			zap.String("UserID", claims.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, orders)
}

// Router returns the routes of the payment order API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/initiate", s.initiate)
	r.Post("/verify", s.verify)
	r.Get("/", s.listMine)

	return r
}
