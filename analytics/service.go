package analytics

import (
	"fmt"
	"net/http"
	"strconv"

	resp "github.com/miragespace/subpay/response"

	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

// ServiceOptions contains the configuration for the analytics Service
type ServiceOptions struct {
	Manager *Manager
	Logger  *zap.Logger
}

// Service is the operator analytics API
type Service struct {
	ServiceOptions
}

// NewService returns a new Service for analytics
func NewService(option ServiceOptions) (*Service, error) {
	if option.Manager == nil {
		return nil, fmt.Errorf("nil Manager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
	}, nil
}

func (s *Service) summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := s.Manager.DashboardSummary(ctx)
	if err != nil {
		s.Logger.Error("Unable to compute dashboard summary",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, result)
}

func (s *Service) revenue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	months, _ := strconv.Atoi(r.URL.Query().Get("months"))

	result, err := s.Manager.MonthlyRevenueReport(ctx, months)
	if err != nil {
		s.Logger.Error("Unable to compute monthly revenue",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, result)
}

func (s *Service) subscriptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := s.Manager.SubscriptionStats(ctx)
	if err != nil {
		s.Logger.Error("Unable to compute subscription stats",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, result)
}

func (s *Service) plans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := s.Manager.PlanPopularityReport(ctx)
	if err != nil {
		s.Logger.Error("Unable to compute plan popularity",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, result)
}

// Router returns the operator routes of the analytics API. The caller is
// expected to gate it behind the admin middleware.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/summary", s.summary)
	r.Get("/revenue", s.revenue)
	r.Get("/subscriptions", s.subscriptions)
	r.Get("/plans", s.plans)

	return r
}
