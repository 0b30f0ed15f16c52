package ai

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/formexa/formexa/core"
	"github.com/formexa/formexa/pkg/auth"
	"github.com/formexa/formexa/pkg/entitlement"
	"github.com/formexa/formexa/pkg/generate"
	"github.com/formexa/formexa/pkg/jwt"
	"github.com/formexa/formexa/pkg/logger"
	"github.com/formexa/formexa/pkg/plans"
	projectspkg "github.com/formexa/formexa/pkg/projects"
)

// UserProvider resolves the authenticated user, whose mirrored plan decides
// the applicable limits.
type UserProvider interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*auth.User, error)
}

// ProjectArchive persists generations the user asked to keep.
type ProjectArchive interface {
	Save(ctx context.Context, p *projectspkg.Project) error
}

// Service exposes the metered generation endpoints. Every paid action runs
// through the entitlement guard: checked before the provider call, consumed
// only after it succeeds.
type Service struct {
	guard     *entitlement.Service
	catalog   *plans.Catalog
	generator generate.Generator
	users     UserProvider
	archive   ProjectArchive
	log       *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithProjectArchive enables saving generations as projects on request.
func WithProjectArchive(archive ProjectArchive) Option {
	return func(s *Service) { s.archive = archive }
}

// NewService creates the generation module.
func NewService(guard *entitlement.Service, catalog *plans.Catalog, generator generate.Generator, users UserProvider, log *slog.Logger, opts ...Option) *Service {
	if guard == nil || catalog == nil || generator == nil || users == nil {
		panic("ai: guard, catalog, generator and user provider are required")
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Service{guard: guard, catalog: catalog, generator: generator, users: users, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router mounts the generation routes; the caller wraps it with the JWT
// middleware.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/generate", s.generate)
	r.Get("/usage", s.usage)
	return r
}

type generateRequest struct {
	Kind    string            `json:"kind"`
	Prompt  string            `json:"prompt"`
	Options map[string]string `json:"options,omitempty"`
	Save    bool              `json:"save_project,omitempty"`
	Title   string            `json:"title,omitempty"`
}

type generateResponse struct {
	Kind      string            `json:"kind"`
	Output    string            `json:"output"`
	Meta      map[string]string `json:"meta,omitempty"`
	ProjectID string            `json:"project_id,omitempty"`
}

type featureUsage struct {
	Used      int64  `json:"used"`
	Limit     int64  `json:"limit"`
	Unlimited bool   `json:"unlimited"`
	Remaining *int64 `json:"remaining,omitempty"`
}

type usageResponse struct {
	Plan     string                  `json:"plan"`
	Features map[string]featureUsage `json:"features"`
}

func (s *Service) generate(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.Respond(w, r, core.JSONError(core.ErrBadRequest))
		return
	}

	genReq := generate.Request{
		Kind:    generate.Kind(req.Kind),
		Prompt:  req.Prompt,
		Options: req.Options,
	}
	if err := generate.ValidateRequest(genReq); err != nil {
		s.respondError(w, r, err)
		return
	}
	feature := genReq.Kind.Feature()

	// Cheap precheck so obviously over-limit requests never reach the
	// provider. The authoritative check is the atomic consume below.
	allowed, err := s.guard.CanUse(r.Context(), user.ID, user.Plan, feature)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if !allowed {
		s.respondLimitExceeded(w, r, user, feature)
		return
	}

	content, err := s.generator.Generate(r.Context(), genReq)
	if err != nil {
		// Provider failures never consume quota.
		s.log.WarnContext(r.Context(), "generation failed",
			logger.UserID(user.ID.String()),
			slog.String("kind", req.Kind),
			logger.Error(err),
			logger.Component("ai"),
		)
		core.Respond(w, r, core.JSONError(core.ErrBadGateway))
		return
	}

	if err := s.guard.Consume(r.Context(), user.ID, user.Plan, feature); err != nil {
		var limitErr *entitlement.LimitExceededError
		if errors.As(err, &limitErr) {
			// A concurrent request took the last slot while the provider
			// was working; the result is discarded and not billed.
			s.respondLimitExceeded(w, r, user, feature)
			return
		}
		s.respondError(w, r, err)
		return
	}

	resp := generateResponse{
		Kind:   string(content.Kind),
		Output: content.Output,
		Meta:   content.Meta,
	}
	if req.Save && s.archive != nil {
		// The content is already produced and billed; losing the archive
		// copy is not worth failing the request.
		p := &projectspkg.Project{
			UserID: user.ID,
			Title:  req.Title,
			Kind:   content.Kind,
			Input:  req.Prompt,
			Output: content.Output,
			Meta:   content.Meta,
		}
		if err := s.archive.Save(r.Context(), p); err != nil {
			s.log.WarnContext(r.Context(), "project save failed",
				logger.UserID(user.ID.String()),
				logger.Error(err),
				logger.Component("ai"),
			)
		} else {
			resp.ProjectID = p.ID.String()
		}
	}

	core.Respond(w, r, core.JSON("generated", resp, nil))
}

func (s *Service) usage(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	counts, err := s.guard.Usage(r.Context(), user.ID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	limits, err := s.catalog.LimitsFor(user.Plan)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	features := make(map[string]featureUsage, len(limits))
	for feature, limit := range limits {
		fu := featureUsage{
			Used:      counts[feature],
			Limit:     int64(limit),
			Unlimited: limit.IsUnlimited(),
		}
		if !limit.IsUnlimited() {
			remaining := max(int64(limit)-fu.Used, 0)
			fu.Remaining = &remaining
		}
		features[string(feature)] = fu
	}

	core.Respond(w, r, core.JSON("usage", usageResponse{
		Plan:     string(user.Plan),
		Features: features,
	}, nil))
}

func (s *Service) currentUser(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	claims, ok := jwt.GetClaims[auth.AccessClaims](r.Context())
	if !ok {
		core.Respond(w, r, core.JSONError(core.ErrUnauthorized))
		return nil, false
	}
	userID, err := claims.UserID()
	if err != nil {
		core.Respond(w, r, core.JSONError(core.ErrUnauthorized))
		return nil, false
	}

	user, err := s.users.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			core.Respond(w, r, core.JSONError(core.ErrUnauthorized))
		} else {
			s.respondError(w, r, err)
		}
		return nil, false
	}
	return user, true
}

func (s *Service) respondLimitExceeded(w http.ResponseWriter, r *http.Request, user *auth.User, feature plans.Feature) {
	limit, err := s.catalog.LimitFor(user.Plan, feature)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	counts, err := s.guard.Usage(r.Context(), user.ID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	core.Respond(w, r, core.JSONWithStatus(http.StatusPaymentRequired, "limit_exceeded", map[string]any{
		"feature": string(feature),
		"limit":   int64(limit),
		"current": counts[feature],
	}, nil))
}

func (s *Service) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, generate.ErrInvalidKind):
		core.Respond(w, r, core.JSONError(core.NewValidationError("kind", "must be one of article, image, code")))
	case errors.Is(err, generate.ErrEmptyPrompt), errors.Is(err, generate.ErrPromptTooLong):
		core.Respond(w, r, core.JSONError(core.NewValidationError("prompt", err.Error())))
	case errors.Is(err, entitlement.ErrInvalidFeature), errors.Is(err, plans.ErrInvalidFeature):
		core.Respond(w, r, core.JSONError(core.ErrBadRequest))
	case errors.Is(err, plans.ErrPlanNotFound):
		core.Respond(w, r, core.JSONError(core.ErrForbidden))
	default:
		s.log.ErrorContext(r.Context(), "generation request failed", logger.Error(err), logger.Component("ai"))
		core.Respond(w, r, core.JSONError(core.ErrInternalServerError))
	}
}
