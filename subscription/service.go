package subscription

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

// ServiceOptions contains the configuration for the subscription Service
type ServiceOptions struct {
	Engine  *Engine
	Manager *Manager
	Logger  *zap.Logger
}

// Service is the subscription API
type Service struct {
	ServiceOptions
	validate *validator.Validate
}

// NewService returns a new Service for subscriptions
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

// SubscribeRequest is the body for creating a subscription
type SubscribeRequest struct {
	PlanID         string `json:"planId" validate:"required"`
	PaymentOrderID string `json:"paymentOrderId"`
	AutoRenew      bool   `json:"autoRenew"`
}

// CancelRequest is the body for cancelling a subscription
type CancelRequest struct {
	Reason string `json:"reason"`
}

// ChangePlanRequest is the body for switching plans
type ChangePlanRequest struct {
	PlanID string `json:"planId" validate:"required"`
}

// AutoRenewRequest is the body for setting the auto renew flag
type AutoRenewRequest struct {
	AutoRenew *bool `json:"autoRenew" validate:"required"`
}

func (s *Service) subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims := ctx.Value(auth.Context).(*auth.Claims)

	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("planId is required"))
		return
	}

	sub, err := s.Engine.Create(ctx, CreateRequest{
		UserID:         claims.ID,
		PlanID:         req.PlanID,
		PaymentOrderID: req.PaymentOrderID,
		AutoRenew:      req.AutoRenew,
	})
	if err != nil {
		resp.WriteError(w, r, resp.FromEngine(err))
		return
	}

	resp.WriteResponse(w, r, sub)
}

func (s *Service) listMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims := ctx.Value(auth.Context).(*auth.Claims)

	subs, err := s.Manager.ListByUser(ctx, claims.ID)
	if err != nil {
		s.Logger.Error("Unable to list subscriptions",
			zap.String("UserID", claims.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, subs)
}

func (s *Service) getByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims := ctx.Value(auth.Context).(*auth.Claims)
	subID := chi.URLParam(r, "id")

	sub, err := s.Engine.Get(ctx, subID, claims.ID)
	if err != nil {
		resp.WriteError(w, r, resp.FromEngine(err))
		return
	}

	resp.WriteResponse(w, r, sub)
}

func (s *Service) cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims := ctx.Value(auth.Context).(*auth.Claims)
	subID := chi.URLParam(r, "id")

	var req CancelRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			resp.WriteError(w, r, resp.ErrInvalidJson())
			return
		}
	}

	sub, err := s.Engine.Cancel(ctx, subID, claims.ID, req.Reason)
	if err != nil {
		resp.WriteError(w, r, resp.FromEngine(err))
		return
	}

	resp.WriteResponse(w, r, sub)
}

func (s *Service) changePlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims := ctx.Value(auth.Context).(*auth.Claims)
	subID := chi.URLParam(r, "id")

	var req ChangePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("planId is required"))
		return
	}

	sub, err := s.Engine.ChangePlan(ctx, subID, claims.ID, req.PlanID)
	if err != nil {
		resp.WriteError(w, r, resp.FromEngine(err))
		return
	}

	resp.WriteResponse(w, r, sub)
}

func (s *Service) renew(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims := ctx.Value(auth.Context).(*auth.Claims)
	subID := chi.URLParam(r, "id")

	sub, err := s.Engine.Renew(ctx, subID, claims.ID)
	if err != nil {
		resp.WriteError(w, r, resp.FromEngine(err))
		return
	}

	resp.WriteResponse(w, r, sub)
}

func (s *Service) toggleAutoRenew(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims := ctx.Value(auth.Context).(*auth.Claims)
	subID := chi.URLParam(r, "id")

	var req AutoRenewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("autoRenew is required"))
		return
	}

	sub, err := s.Engine.ToggleAutoRenew(ctx, subID, claims.ID, *req.AutoRenew)
	if err != nil {
		resp.WriteError(w, r, resp.FromEngine(err))
		return
	}

	resp.WriteResponse(w, r, sub)
}

// Router returns the user-facing routes of the subscription API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.subscribe)
	r.Get("/", s.listMine)
	r.Get("/{id}", s.getByID)
	r.Post("/{id}/cancel", s.cancel)
	r.Post("/{id}/changePlan", s.changePlan)
	r.Post("/{id}/renew", s.renew)
	r.Post("/{id}/autoRenew", s.toggleAutoRenew)

	return r
}
