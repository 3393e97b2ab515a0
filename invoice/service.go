package invoice

import (
	"fmt"
	"net/http"

	"github.com/miragespace/subpay/auth"
	resp "github.com/miragespace/subpay/response"

	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

// ServiceOptions contains the configuration for the invoice Service
type ServiceOptions struct {
	Engine  *Engine
	Manager *Manager
	Logger  *zap.Logger
}

// Service is the invoice API
type Service struct {
	ServiceOptions
}

// NewService returns a new Service for invoices
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
	}, nil
}

func (s *Service) listMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims := ctx.Value(auth.Context).(*auth.Claims)

	invoices, err := s.Manager.ListByUser(ctx, claims.ID)
	if err != nil {
		s.Logger.Error("Unable to list invoices",
			zap.String("UserID", claims.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, invoices)
}

func (s *Service) getByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims := ctx.Value(auth.Context).(*auth.Claims)
	invoiceID := chi.URLParam(r, "id")

	inv, err := s.Manager.GetByID(ctx, invoiceID)
	if err != nil {
		s.Logger.Error("Unable to get invoice",
			zap.String("InvoiceID", invoiceID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}
	if inv == nil {
		resp.WriteError(w, r, resp.ErrNotFound())
		return
	}
	if inv.UserID != claims.ID && claims.Role != auth.RoleAdmin {
		resp.WriteError(w, r, resp.ErrForbidden())
		return
	}

	resp.WriteResponse(w, r, inv)
}

func (s *Service) markPaid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	invoiceID := chi.URLParam(r, "id")

	inv, err := s.Engine.MarkPaid(ctx, invoiceID)
	if err != nil {
		resp.WriteError(w, r, resp.FromEngine(err))
		return
	}

	resp.WriteResponse(w, r, inv)
}

func (s *Service) cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	invoiceID := chi.URLParam(r, "id")

	inv, err := s.Engine.Cancel(ctx, invoiceID)
	if err != nil {
		resp.WriteError(w, r, resp.FromEngine(err))
		return
	}

	resp.WriteResponse(w, r, inv)
}

func (s *Service) sweepOverdue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flipped, err := s.Engine.SweepOverdue(ctx)
	if err != nil {
		s.Logger.Error("Unable to sweep overdue invoices",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, map[string]int{"updated": flipped})
}

// Router returns the user-facing routes of the invoice API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.listMine)
	r.Get("/{id}", s.getByID)

	return r
}

// AdminRouter returns the operator routes of the invoice API. The caller is
// expected to gate it behind the admin middleware.
func (s *Service) AdminRouter() http.Handler {
	r := chi.NewRouter()

	r.Post("/{id}/markPaid", s.markPaid)
	r.Post("/{id}/cancel", s.cancel)
	r.Post("/sweepOverdue", s.sweepOverdue)

	return r
}
