package projects_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	projectsmod "github.com/formexa/formexa/modules/projects"
	"github.com/formexa/formexa/pkg/auth"
	"github.com/formexa/formexa/pkg/generate"
	"github.com/formexa/formexa/pkg/jwt"
	"github.com/formexa/formexa/pkg/projects"
)

type env struct {
	handler http.Handler
	library *projects.Service
	tokens  *jwt.Service
	user    *auth.User
	token   string
}

func newEnv(t *testing.T) *env {
	t.Helper()

	library := projects.NewService(projects.NewMemoryStore())
	svc := projectsmod.NewService(library, slog.New(slog.NewTextHandler(io.Discard, nil)))

	authSvc := auth.NewPasswordService(auth.NewMemoryStorage(), auth.WithBcryptCost(4))
	user, err := authSvc.Register(context.Background(), "jane@example.com", "s3cret-password")
	require.NoError(t, err)

	tokens, err := jwt.NewFromString("test-signing-key")
	require.NoError(t, err)
	token, err := tokens.Generate(auth.NewAccessClaims(user, time.Hour))
	require.NoError(t, err)

	return &env{
		handler: jwt.Middleware[auth.AccessClaims](tokens, nil)(svc.Router()),
		library: library,
		tokens:  tokens,
		user:    user,
		token:   token,
	}
}

func (e *env) seed(t *testing.T, userID uuid.UUID, kind generate.Kind, title string) *projects.Project {
	t.Helper()

	p := &projects.Project{
		UserID: userID,
		Title:  title,
		Kind:   kind,
		Input:  "prompt",
		Output: "output",
	}
	require.NoError(t, e.library.Save(context.Background(), p))
	return p
}

func (e *env) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestProjectLifecycle(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	p := e.seed(t, e.user.ID, generate.KindArticle, "Morning pages")

	rec := e.do(t, http.MethodGet, "/"+p.ID.String(), e.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Data struct {
			ID    string `json:"id"`
			Title string `json:"title"`
			Kind  string `json:"kind"`
			Input string `json:"input"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, p.ID.String(), got.Data.ID)
	assert.Equal(t, "Morning pages", got.Data.Title)
	assert.Equal(t, "article", got.Data.Kind)

	rec = e.do(t, http.MethodPut, "/"+p.ID.String(), e.token, map[string]any{
		"title":     "Evening pages",
		"is_public": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated struct {
		Data struct {
			Title    string `json:"title"`
			IsPublic bool   `json:"is_public"`
			Input    string `json:"input"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "Evening pages", updated.Data.Title)
	assert.True(t, updated.Data.IsPublic)
	assert.Equal(t, "prompt", updated.Data.Input, "content fields are not editable")

	rec = e.do(t, http.MethodDelete, "/"+p.ID.String(), e.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/"+p.ID.String(), e.token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProjectListing(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.seed(t, e.user.ID, generate.KindArticle, "one")
	e.seed(t, e.user.ID, generate.KindImage, "two")
	e.seed(t, e.user.ID, generate.KindArticle, "three")

	rec := e.do(t, http.MethodGet, "/", e.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []struct {
			Title string `json:"title"`
		} `json:"data"`
		Meta struct {
			Total  int64 `json:"total"`
			Limit  int   `json:"limit"`
			Offset int   `json:"offset"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(3), body.Meta.Total)
	assert.Equal(t, projects.DefaultPageSize, body.Meta.Limit)
	require.Len(t, body.Data, 3)

	rec = e.do(t, http.MethodGet, "/?kind=article", e.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body.Data = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(2), body.Meta.Total)
	require.Len(t, body.Data, 2)

	rec = e.do(t, http.MethodGet, "/?kind=video", e.token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = e.do(t, http.MethodGet, "/?limit=nope", e.token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestProjectOwnerScoping(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	p := e.seed(t, e.user.ID, generate.KindCode, "mine")

	other := &auth.User{ID: uuid.New(), Email: "intruder@example.com"}
	otherToken, err := e.tokens.Generate(auth.NewAccessClaims(other, time.Hour))
	require.NoError(t, err)

	rec := e.do(t, http.MethodGet, "/"+p.ID.String(), otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPut, "/"+p.ID.String(), otherToken, map[string]any{"title": "stolen"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodDelete, "/"+p.ID.String(), otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodGet, "/", otherToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Zero(t, body.Meta.Total)
}

func TestProjectMalformedID(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/not-a-uuid", e.token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
