package projects_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formexa/formexa/pkg/generate"
	"github.com/formexa/formexa/pkg/projects"
)

// newService returns a service whose clock advances a minute per call, so
// creation order is unambiguous.
func newService() *projects.Service {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return projects.NewService(projects.NewMemoryStore(),
		projects.WithClock(func() time.Time {
			now = now.Add(time.Minute)
			return now
		}),
	)
}

func saveProject(t *testing.T, svc *projects.Service, userID uuid.UUID, kind generate.Kind, title string) *projects.Project {
	t.Helper()

	p := &projects.Project{
		UserID: userID,
		Title:  title,
		Kind:   kind,
		Input:  "prompt for " + title,
		Output: "output for " + title,
	}
	require.NoError(t, svc.Save(context.Background(), p))
	return p
}

func TestSaveAndGet(t *testing.T) {
	t.Parallel()

	svc := newService()
	ctx := context.Background()
	owner := uuid.New()

	p := saveProject(t, svc, owner, generate.KindArticle, "My article")
	require.NotEqual(t, uuid.Nil, p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := svc.Get(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "My article", got.Title)
	assert.Equal(t, generate.KindArticle, got.Kind)
	assert.Equal(t, "prompt for My article", got.Input)

	// Someone else's lookup behaves like a missing record.
	_, err = svc.Get(ctx, uuid.New(), p.ID)
	assert.ErrorIs(t, err, projects.ErrProjectNotFound)
}

func TestSaveDefaultTitle(t *testing.T) {
	t.Parallel()

	svc := newService()
	owner := uuid.New()

	p := &projects.Project{
		UserID: owner,
		Kind:   generate.KindImage,
		Input:  "a cat",
		Output: "https://images.example.com/cat.png",
	}
	require.NoError(t, svc.Save(context.Background(), p))
	assert.Equal(t, "Image - 2025-06-01", p.Title)
}

func TestListPagingAndFilter(t *testing.T) {
	t.Parallel()

	svc := newService()
	ctx := context.Background()
	owner := uuid.New()

	saveProject(t, svc, owner, generate.KindArticle, "first")
	saveProject(t, svc, owner, generate.KindImage, "second")
	saveProject(t, svc, owner, generate.KindArticle, "third")
	saveProject(t, svc, owner, generate.KindCode, "fourth")
	saveProject(t, svc, uuid.New(), generate.KindArticle, "not mine")

	page, total, err := svc.List(ctx, owner, projects.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, page, 4)
	assert.Equal(t, "fourth", page[0].Title, "newest first")
	assert.Equal(t, "first", page[3].Title)

	articles, total, err := svc.List(ctx, owner, projects.Filter{Kind: generate.KindArticle})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, articles, 2)
	assert.Equal(t, "third", articles[0].Title)

	page, total, err = svc.List(ctx, owner, projects.Filter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total, "total ignores paging")
	require.Len(t, page, 2)
	assert.Equal(t, "second", page[0].Title)

	page, _, err = svc.List(ctx, owner, projects.Filter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	svc := newService()
	ctx := context.Background()
	owner := uuid.New()
	p := saveProject(t, svc, owner, generate.KindCode, "draft")

	title := "Parser generator"
	public := true
	tags := []string{"go", "parsing"}
	updated, err := svc.Update(ctx, owner, p.ID, projects.Patch{
		Title:    &title,
		Tags:     &tags,
		IsPublic: &public,
	})
	require.NoError(t, err)
	assert.Equal(t, "Parser generator", updated.Title)
	assert.Equal(t, tags, updated.Tags)
	assert.True(t, updated.IsPublic)
	assert.Equal(t, "output for draft", updated.Output, "content is immutable")

	// Untouched fields survive a partial patch.
	desc := "a code generator"
	updated, err = svc.Update(ctx, owner, p.ID, projects.Patch{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Parser generator", updated.Title)
	assert.Equal(t, "a code generator", updated.Description)

	blank := "   "
	_, err = svc.Update(ctx, owner, p.ID, projects.Patch{Title: &blank})
	assert.ErrorIs(t, err, projects.ErrTitleRequired)

	_, err = svc.Update(ctx, uuid.New(), p.ID, projects.Patch{Description: &desc})
	assert.ErrorIs(t, err, projects.ErrProjectNotFound)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	svc := newService()
	ctx := context.Background()
	owner := uuid.New()
	p := saveProject(t, svc, owner, generate.KindArticle, "ephemeral")

	assert.ErrorIs(t, svc.Delete(ctx, uuid.New(), p.ID), projects.ErrProjectNotFound)

	require.NoError(t, svc.Delete(ctx, owner, p.ID))
	_, err := svc.Get(ctx, owner, p.ID)
	assert.ErrorIs(t, err, projects.ErrProjectNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, owner, p.ID), projects.ErrProjectNotFound)
}
