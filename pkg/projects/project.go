package projects

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/formexa/formexa/pkg/generate"
)

// Project is one saved generation.
type Project struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Title       string
	Description string
	Kind        generate.Kind
	Input       string
	Output      string
	Meta        map[string]string
	Tags        []string
	IsPublic    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Filter narrows and pages a listing. The zero Kind matches every kind.
type Filter struct {
	Kind   generate.Kind
	Limit  int
	Offset int
}

// Patch carries the fields a user may edit after saving. Nil fields stay
// untouched.
type Patch struct {
	Title       *string
	Description *string
	Tags        *[]string
	IsPublic    *bool
}

// Store persists projects. Every operation is scoped to the owning user, so
// an id belonging to someone else is indistinguishable from a missing record.
type Store interface {
	Create(ctx context.Context, p *Project) error
	List(ctx context.Context, userID uuid.UUID, f Filter) ([]*Project, int64, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*Project, error)
	Update(ctx context.Context, userID, id uuid.UUID, patch Patch) (*Project, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}
