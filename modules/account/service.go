package account

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/formexa/formexa/core"
	"github.com/formexa/formexa/pkg/auth"
	"github.com/formexa/formexa/pkg/email"
	"github.com/formexa/formexa/pkg/jwt"
	"github.com/formexa/formexa/pkg/logger"
)

// Service exposes registration, login, profile and credential recovery
// endpoints.
type Service struct {
	auth     auth.PasswordAuthenticator
	tokens   *jwt.Service
	notifier *email.Notifier
	appURL   string
	log      *slog.Logger
}

// ServiceOption configures the account module.
type ServiceOption func(*Service)

// WithAppURL sets the base URL used in verification and reset links.
func WithAppURL(u string) ServiceOption {
	return func(s *Service) {
		s.appURL = strings.TrimRight(u, "/")
	}
}

// NewService creates the account module.
func NewService(authSvc auth.PasswordAuthenticator, tokens *jwt.Service, notifier *email.Notifier, log *slog.Logger, opts ...ServiceOption) *Service {
	if authSvc == nil || tokens == nil {
		panic("account: auth service and token service are required")
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Service{auth: authSvc, tokens: tokens, notifier: notifier, appURL: "http://localhost:8080", log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router mounts the public account routes.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/register", s.register)
	r.Post("/login", s.login)
	r.Post("/verify-email", s.verifyEmail)
	r.Post("/password/forgot", s.forgotPassword)
	r.Post("/password/reset", s.resetPassword)
	return r
}

// ProtectedRouter mounts routes that require authentication; the caller
// wraps it with the JWT middleware.
func (s *Service) ProtectedRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/me", s.me)
	return r
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	EmailVerified      bool   `json:"email_verified"`
	Plan               string `json:"plan"`
	SubscriptionStatus string `json:"subscription_status"`
}

type authResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

func toUserResponse(u *auth.User) userResponse {
	return userResponse{
		ID:                 u.ID.String(),
		Email:              u.Email,
		EmailVerified:      u.EmailVerified,
		Plan:               string(u.Plan),
		SubscriptionStatus: string(u.SubscriptionStatus),
	}
}

func (s *Service) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.Respond(w, r, core.JSONError(core.ErrBadRequest))
		return
	}

	user, err := s.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if s.notifier != nil {
		s.notifier.Welcome(r.Context(), user.Email)
		if vt, err := s.auth.StartEmailVerification(r.Context(), user.Email); err == nil {
			s.notifier.VerifyEmail(r.Context(), user.Email, s.appURL+"/verify-email?token="+vt)
		} else {
			s.log.WarnContext(r.Context(), "failed to issue verification token", logger.Error(err), logger.Component("account"))
		}
	}

	token, err := s.tokens.Generate(auth.NewAccessClaims(user, auth.DefaultTokenTTL))
	if err != nil {
		s.log.ErrorContext(r.Context(), "failed to issue token", logger.Error(err), logger.Component("account"))
		core.Respond(w, r, core.JSONError(core.ErrInternalServerError))
		return
	}

	core.Respond(w, r, core.JSONWithStatus(http.StatusCreated, "registered", authResponse{
		User:  toUserResponse(user),
		Token: token,
	}, nil))
}

func (s *Service) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.Respond(w, r, core.JSONError(core.ErrBadRequest))
		return
	}

	user, err := s.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	token, err := s.tokens.Generate(auth.NewAccessClaims(user, auth.DefaultTokenTTL))
	if err != nil {
		s.log.ErrorContext(r.Context(), "failed to issue token", logger.Error(err), logger.Component("account"))
		core.Respond(w, r, core.JSONError(core.ErrInternalServerError))
		return
	}

	core.Respond(w, r, core.JSON("authenticated", authResponse{
		User:  toUserResponse(user),
		Token: token,
	}, nil))
}

func (s *Service) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := jwt.GetClaims[auth.AccessClaims](r.Context())
	if !ok {
		core.Respond(w, r, core.JSONError(core.ErrUnauthorized))
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		core.Respond(w, r, core.JSONError(core.ErrUnauthorized))
		return
	}

	user, err := s.auth.GetUser(r.Context(), userID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	core.Respond(w, r, core.JSON("me", toUserResponse(user), nil))
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (s *Service) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.Respond(w, r, core.JSONError(core.ErrBadRequest))
		return
	}

	user, err := s.auth.VerifyEmail(r.Context(), req.Token)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	core.Respond(w, r, core.JSON("email_verified", toUserResponse(user), nil))
}

func (s *Service) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.Respond(w, r, core.JSONError(core.ErrBadRequest))
		return
	}

	token, err := s.auth.RequestPasswordReset(r.Context(), req.Email)
	switch {
	case err == nil:
		if s.notifier != nil {
			s.notifier.PasswordReset(r.Context(), auth.NormalizeEmail(req.Email), s.appURL+"/reset-password?token="+token)
		}
	case errors.Is(err, auth.ErrUserNotFound):
		// Answer identically so addresses cannot be probed.
	default:
		s.respondError(w, r, err)
		return
	}

	core.Respond(w, r, core.JSON("reset_requested", nil, nil))
}

func (s *Service) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.Respond(w, r, core.JSONError(core.ErrBadRequest))
		return
	}

	if err := s.auth.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		s.respondError(w, r, err)
		return
	}

	core.Respond(w, r, core.JSON("password_reset", nil, nil))
}

func (s *Service) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidEmail):
		core.Respond(w, r, core.JSONError(core.NewValidationError("email", "must be a valid email address")))
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrPasswordTooLong):
		core.Respond(w, r, core.JSONError(core.NewValidationError("password", err.Error())))
	case errors.Is(err, auth.ErrEmailAlreadyExists):
		core.Respond(w, r, core.JSONError(core.ErrConflict))
	case errors.Is(err, auth.ErrInvalidCredentials):
		core.Respond(w, r, core.JSONError(core.ErrUnauthorized))
	case errors.Is(err, auth.ErrInvalidToken):
		core.Respond(w, r, core.JSONError(core.NewValidationError("token", "is invalid or expired")))
	case errors.Is(err, auth.ErrEmailAlreadyVerified):
		core.Respond(w, r, core.JSONError(core.ErrConflict))
	case errors.Is(err, auth.ErrUserNotFound):
		core.Respond(w, r, core.JSONError(core.ErrNotFound))
	default:
		s.log.ErrorContext(r.Context(), "account request failed", logger.Error(err), logger.Component("account"))
		core.Respond(w, r, core.JSONError(core.ErrInternalServerError))
	}
}
