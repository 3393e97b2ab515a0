package usage

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/miragespace/subpay/auth"
	resp "github.com/miragespace/subpay/response"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ServiceOptions contains the configuration for the usage Service
type ServiceOptions struct {
	Manager *Manager
	Logger  *zap.Logger
}

// Service is the usage API
type Service struct {
	ServiceOptions
	validate *validator.Validate
}

// NewService returns a new Service for usage records
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

// TrackRequest is the body for recording a usage sample
type TrackRequest struct {
	Metric   string `json:"metric" validate:"required"`
	Quantity int64  `json:"quantity" validate:"required,gt=0"`
}

func (s *Service) track(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims := ctx.Value(auth.Context).(*auth.Claims)

	var req TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("metric and a positive quantity are required"))
		return
	}

	rec, err := s.Manager.Track(ctx, claims.ID, req.Metric, req.Quantity)
	if err != nil {
		resp.WriteError(w, r, resp.FromEngine(err))
		return
	}

	resp.WriteResponse(w, r, rec)
}

func (s *Service) summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims := ctx.Value(auth.Context).(*auth.Claims)

	since := time.Now().AddDate(0, -1, 0)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("since must be RFC3339"))
			return
		}
		since = parsed
	}

	totals, err := s.Manager.Summary(ctx, claims.ID, since)
	if err != nil {
		s.Logger.Error("Unable to compute usage summary",
			zap.String("UserID", claims.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, totals)
}

// Router returns the routes of the usage API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.track)
	r.Get("/summary", s.summary)

	return r
}
