package plan

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/miragespace/subpay/money"
	resp "github.com/miragespace/subpay/response"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ServiceOptions contains the configuration for the plan Service
type ServiceOptions struct {
	Manager *Manager
	Logger  *zap.Logger
}

// Service is the plan catalog API
type Service struct {
	ServiceOptions
	validate *validator.Validate
}

// NewService returns a new Service for the plan catalog
func NewService(option ServiceOptions) (*Service, error) {
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

// PlanRequest is the body for creating or updating a plan. Price is a
// decimal string.
type PlanRequest struct {
	Name         string   `json:"name" validate:"required"`
	Description  string   `json:"description"`
	Price        string   `json:"price" validate:"required"`
	Currency     string   `json:"currency" validate:"required,len=3"`
	BillingCycle Cycle    `json:"billingCycle" validate:"required"`
	TrialDays    int      `json:"trialDays" validate:"gte=0"`
	Featured     bool     `json:"featured"`
	Features     []string `json:"features"`
	SortOrder    int      `json:"sortOrder"`
}

func (s *Service) listActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	plans, err := s.Manager.ListActive(ctx)
	if err != nil {
		s.Logger.Error("Unable to list plans",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, plans)
}

func (s *Service) listFeatured(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	plans, err := s.Manager.ListFeatured(ctx)
	if err != nil {
		s.Logger.Error("Unable to list featured plans",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, plans)
}

func (s *Service) getByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	planID := chi.URLParam(r, "id")

	p, err := s.Manager.GetByID(ctx, planID)
	if err != nil {
		s.Logger.Error("Unable to get plan",
			zap.String("PlanID", planID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}
	if p == nil {
		resp.WriteError(w, r, resp.ErrNotFound())
		return
	}

	resp.WriteResponse(w, r, p)
}

func (s *Service) listAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	plans, err := s.Manager.List(ctx, limit, offset)
	if err != nil {
		s.Logger.Error("Unable to list plans",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, plans)
}

func (s *Service) decodePlan(w http.ResponseWriter, r *http.Request) (*Plan, bool) {
	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return nil, false
	}
	if err := s.validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("name, price, currency and billingCycle are required"))
		return nil, false
	}
	price, err := money.Parse(req.Price)
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("price must be a non-negative decimal"))
		return nil, false
	}
	if !req.BillingCycle.Valid() {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("billingCycle must be MONTHLY, QUARTERLY or YEARLY"))
		return nil, false
	}

	return &Plan{
		Name:         req.Name,
		Description:  req.Description,
		Price:        price,
		Currency:     req.Currency,
		BillingCycle: req.BillingCycle,
		TrialDays:    req.TrialDays,
		Active:       true,
		Featured:     req.Featured,
		Features:     req.Features,
		SortOrder:    req.SortOrder,
	}, true
}

func (s *Service) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := s.decodePlan(w, r)
	if !ok {
		return
	}

	if err := s.Manager.Create(ctx, p); err != nil {
		resp.WriteError(w, r, resp.FromEngine(err))
		return
	}

	resp.WriteResponse(w, r, p)
}

func (s *Service) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	planID := chi.URLParam(r, "id")

	existing, err := s.Manager.GetByID(ctx, planID)
	if err != nil {
		s.Logger.Error("Unable to get plan",
			zap.String("PlanID", planID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}
	if existing == nil {
		resp.WriteError(w, r, resp.ErrNotFound())
		return
	}

	p, ok := s.decodePlan(w, r)
	if !ok {
		return
	}
	p.ID = existing.ID
	p.Active = existing.Active
	p.CreatedAt = existing.CreatedAt

	if err := s.Manager.Update(ctx, p); err != nil {
		resp.WriteError(w, r, resp.FromEngine(err))
		return
	}

	resp.WriteResponse(w, r, p)
}

func (s *Service) setActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		planID := chi.URLParam(r, "id")

		p, err := s.Manager.SetActive(ctx, planID, active)
		if err != nil {
			resp.WriteError(w, r, resp.FromEngine(err))
			return
		}

		resp.WriteResponse(w, r, p)
	}
}

func (s *Service) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	planID := chi.URLParam(r, "id")

	if err := s.Manager.Delete(ctx, planID); err != nil {
		resp.WriteError(w, r, resp.FromEngine(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Router returns the public routes of the plan catalog
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.listActive)
	r.Get("/featured", s.listFeatured)
	r.Get("/{id}", s.getByID)

	return r
}

// AdminRouter returns the operator routes of the plan catalog. The caller is
// expected to gate it behind the admin middleware.
func (s *Service) AdminRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.listAll)
	r.Post("/", s.create)
	r.Put("/{id}", s.update)
	r.Post("/{id}/activate", s.setActive(true))
	r.Post("/{id}/deactivate", s.setActive(false))
	r.Delete("/{id}", s.delete)

	return r
}
