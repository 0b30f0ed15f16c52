package projects

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/formexa/formexa/core"
	"github.com/formexa/formexa/pkg/auth"
	"github.com/formexa/formexa/pkg/generate"
	"github.com/formexa/formexa/pkg/jwt"
	"github.com/formexa/formexa/pkg/logger"
	projectspkg "github.com/formexa/formexa/pkg/projects"
)

// Service exposes the saved-project endpoints. Projects are created from the
// generation flow; this module covers listing, editing and deleting them.
type Service struct {
	library *projectspkg.Service
	log     *slog.Logger
}

// NewService creates the projects module.
func NewService(library *projectspkg.Service, log *slog.Logger) *Service {
	if library == nil {
		panic("projects: project service is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{library: library, log: log}
}

// Router mounts the project routes; the caller wraps it with the JWT
// middleware.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.list)
	r.Get("/{id}", s.get)
	r.Put("/{id}", s.update)
	r.Delete("/{id}", s.delete)
	return r
}

type projectResponse struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Kind        string            `json:"kind"`
	Input       string            `json:"input"`
	Output      string            `json:"output,omitempty"`
	Meta        map[string]string `json:"meta,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	IsPublic    bool              `json:"is_public"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func toProjectResponse(p *projectspkg.Project) projectResponse {
	return projectResponse{
		ID:          p.ID.String(),
		Title:       p.Title,
		Description: p.Description,
		Kind:        string(p.Kind),
		Input:       p.Input,
		Output:      p.Output,
		Meta:        p.Meta,
		Tags:        p.Tags,
		IsPublic:    p.IsPublic,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (s *Service) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUserID(w, r)
	if !ok {
		return
	}

	filter := projectspkg.Filter{}
	q := r.URL.Query()
	if kind := q.Get("kind"); kind != "" {
		if !generate.Kind(kind).Valid() {
			core.Respond(w, r, core.JSONError(core.NewValidationError("kind", "must be one of article, image, code")))
			return
		}
		filter.Kind = generate.Kind(kind)
	}
	var err error
	if filter.Limit, err = queryInt(q.Get("limit")); err != nil {
		core.Respond(w, r, core.JSONError(core.NewValidationError("limit", "must be a number")))
		return
	}
	if filter.Offset, err = queryInt(q.Get("offset")); err != nil {
		core.Respond(w, r, core.JSONError(core.NewValidationError("offset", "must be a number")))
		return
	}
	if filter.Limit <= 0 {
		filter.Limit = projectspkg.DefaultPageSize
	}
	if filter.Limit > projectspkg.MaxPageSize {
		filter.Limit = projectspkg.MaxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	page, total, err := s.library.List(r.Context(), userID, filter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	items := make([]projectResponse, len(page))
	for i, p := range page {
		items[i] = toProjectResponse(p)
	}
	core.Respond(w, r, core.JSON("projects", items, map[string]any{
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	}))
}

func (s *Service) get(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUserID(w, r)
	if !ok {
		return
	}
	id, ok := s.projectID(w, r)
	if !ok {
		return
	}

	p, err := s.library.Get(r.Context(), userID, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	core.Respond(w, r, core.JSON("project", toProjectResponse(p), nil))
}

type updateRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
	IsPublic    *bool     `json:"is_public"`
}

func (s *Service) update(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUserID(w, r)
	if !ok {
		return
	}
	id, ok := s.projectID(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.Respond(w, r, core.JSONError(core.ErrBadRequest))
		return
	}

	p, err := s.library.Update(r.Context(), userID, id, projectspkg.Patch{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	core.Respond(w, r, core.JSON("project", toProjectResponse(p), nil))
}

func (s *Service) delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUserID(w, r)
	if !ok {
		return
	}
	id, ok := s.projectID(w, r)
	if !ok {
		return
	}

	if err := s.library.Delete(r.Context(), userID, id); err != nil {
		s.respondError(w, r, err)
		return
	}
	core.Respond(w, r, core.JSON("deleted", nil, nil))
}

func (s *Service) currentUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims, ok := jwt.GetClaims[auth.AccessClaims](r.Context())
	if !ok {
		core.Respond(w, r, core.JSONError(core.ErrUnauthorized))
		return uuid.Nil, false
	}
	userID, err := claims.UserID()
	if err != nil {
		core.Respond(w, r, core.JSONError(core.ErrUnauthorized))
		return uuid.Nil, false
	}
	return userID, true
}

// projectID parses the path id. A malformed id cannot name any record, so it
// reads as not found.
func (s *Service) projectID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		core.Respond(w, r, core.JSONError(core.ErrNotFound))
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func (s *Service) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, projectspkg.ErrProjectNotFound):
		core.Respond(w, r, core.JSONError(core.ErrNotFound))
	case errors.Is(err, projectspkg.ErrTitleRequired):
		core.Respond(w, r, core.JSONError(core.NewValidationError("title", "must not be empty")))
	default:
		s.log.ErrorContext(r.Context(), "project request failed", logger.Error(err), logger.Component("projects"))
		core.Respond(w, r, core.JSONError(core.ErrInternalServerError))
	}
}
