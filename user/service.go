package user

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

var validate *validator.Validate = validator.New()

// ServiceOptions contains the configuration for the user Service
type ServiceOptions struct {
	Auth    *auth.Auth
	Manager *Manager
	Logger  *zap.Logger
}

// Service is the user API
type Service struct {
	ServiceOptions
}

// NewService returns a new Service for users
func NewService(option ServiceOptions) (*Service, error) {
	if option.Auth == nil {
		return nil, fmt.Errorf("nil Auth is invalid")
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

// LoginRequest is the model of user request for login pin
type LoginRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// TokenResponse carries the session tokens after a successful login
type TokenResponse struct {
	Token   string `json:"token"`
	Refresh string `json:"refresh"`
}

// UpdateProfileRequest is the body for profile edits
type UpdateProfileRequest struct {
	FullName string `json:"fullName"`
	Company  string `json:"company"`
}

func (s *Service) requestLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	logger := s.Logger.With(zap.String("email", req.Email))

	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("a valid email is required"))
		return
	}

	if err := s.Auth.Request(r.Context(), req.Email, req.Email); err != nil {
		logger.Error("Unable to send login PIN",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email := chi.URLParam(r, "uid")
	token := chi.URLParam(r, "token")

	logger := s.Logger.With(zap.String("email", email))

	valid, err := s.Auth.Verify(ctx, email, token)
	if err != nil {
		logger.Error("Unable to verify login PIN",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	if !valid {
		resp.WriteError(w, r, resp.ErrUnauthorized())
		return
	}

	// "upsert" a user
	u, err := s.Manager.GetByEmail(ctx, email)
	if err != nil {
		logger.Error("Unable to look up user",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	if u == nil {
		u = &User{
			Email: email,
		}
		if err := s.Manager.Create(ctx, u); err != nil {
			logger.Error("Unable to create user",
				zap.Error(err),
			)
			resp.WriteError(w, r, resp.ErrUnexpected())
			return
		}
	}

	s.writeTokens(w, r, u, logger)
}

func (s *Service) refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}

	claim, err := s.Auth.VerifyRefreshToken(req.Refresh)
	if err != nil {
		s.Logger.Error("Unable to verify refresh token",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}
	if claim == nil {
		resp.WriteError(w, r, resp.ErrUnauthorized())
		return
	}

	u, err := s.Manager.GetByID(ctx, claim.ID)
	if err != nil {
		s.Logger.Error("Unable to look up user",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}
	if u == nil || !u.Active {
		resp.WriteError(w, r, resp.ErrUnauthorized())
		return
	}

	s.writeTokens(w, r, u, s.Logger)
}

func (s *Service) writeTokens(w http.ResponseWriter, r *http.Request, u *User, logger *zap.Logger) {
	claims := auth.Claims{
		ID:    u.ID,
		Email: u.Email,
		Role:  string(u.Role),
	}

	jwtToken, err := s.Auth.CreateTokenFromClaims(claims)
	if err != nil {
		logger.Error("Unable to generate token",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}
	refreshToken, err := s.Auth.CreateRefreshTokenFromClaims(claims)
	if err != nil {
		logger.Error("Unable to generate refresh token",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, TokenResponse{
		Token:   jwtToken,
		Refresh: refreshToken,
	})
}

func (s *Service) me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims := ctx.Value(auth.Context).(*auth.Claims)

	u, err := s.Manager.GetByID(ctx, claims.ID)
	if err != nil {
		s.Logger.Error("Unable to get user",
			zap.String("UserID", claims.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}
	if u == nil {
		resp.WriteError(w, r, resp.ErrNotFound())
		return
	}

	resp.WriteResponse(w, r, u)
}

func (s *Service) updateMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims := ctx.Value(auth.Context).(*auth.Claims)

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}

	u, err := s.Manager.GetByID(ctx, claims.ID)
	if err != nil {
		s.Logger.Error("Unable to get user",
			zap.String("UserID", claims.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}
	if u == nil {
		resp.WriteError(w, r, resp.ErrNotFound())
		return
	}

	u.FullName = req.FullName
	u.Company = req.Company
	if err := s.Manager.Update(ctx, u); err != nil {
		s.Logger.Error("Unable to update user",
			zap.String("UserID", claims.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, u)
}

// LoginRouter returns the unauthenticated login routes
func (s *Service) LoginRouter() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.requestLogin)
	r.Get("/{uid}/{token}", s.handleLogin)
	r.Post("/refresh", s.refresh)

	return r
}

// Router returns the authenticated profile routes
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.me)
	r.Put("/", s.updateMe)

	return r
}
