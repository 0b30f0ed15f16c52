package projects

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/formexa/formexa/pkg/generate"
)

// Listing page bounds. Callers exceeding MaxPageSize are clamped, not
// rejected.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Service wraps a Store with input normalization and paging defaults.
type Service struct {
	store Store
	log   *slog.Logger
	clock func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService creates a project service. Panics if store is nil.
func NewService(store Store, opts ...ServiceOption) *Service {
	if store == nil {
		panic("projects: store is required")
	}

	s := &Service{
		store: store,
		log:   slog.Default(),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save stores a new project for its owner. The id and timestamps are assigned
// here; an empty title falls back to a kind-and-date stamp.
func (s *Service) Save(ctx context.Context, p *Project) error {
	now := s.clock().UTC()
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		p.Title = defaultTitle(p.Kind, now)
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.store.Create(ctx, p); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "project saved",
		slog.String("user_id", p.UserID.String()),
		slog.String("kind", string(p.Kind)),
	)
	return nil
}

// List returns a page of the user's projects, newest first, with the total
// count for the filter. Out-of-range paging values are clamped.
func (s *Service) List(ctx context.Context, userID uuid.UUID, f Filter) ([]*Project, int64, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.store.List(ctx, userID, f)
}

// Get returns one of the user's projects.
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*Project, error) {
	return s.store.Get(ctx, userID, id)
}

// Update edits the user-editable fields of a project and returns the updated
// record.
func (s *Service) Update(ctx context.Context, userID, id uuid.UUID, patch Patch) (*Project, error) {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, ErrTitleRequired
		}
		patch.Title = &title
	}
	return s.store.Update(ctx, userID, id, patch)
}

// Delete removes one of the user's projects.
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "project deleted",
		slog.String("user_id", userID.String()),
		slog.String("project_id", id.String()),
	)
	return nil
}

func defaultTitle(kind generate.Kind, now time.Time) string {
	name := "Project"
	switch kind {
	case generate.KindArticle:
		name = "Article"
	case generate.KindImage:
		name = "Image"
	case generate.KindCode:
		name = "Code"
	}
	return name + " - " + now.Format("2006-01-02")
}
