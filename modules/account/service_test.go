package account_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formexa/formexa/modules/account"
	"github.com/formexa/formexa/pkg/auth"
	"github.com/formexa/formexa/pkg/jwt"
)

func newHandler(t *testing.T) (http.Handler, auth.PasswordAuthenticator) {
	t.Helper()

	authSvc := auth.NewPasswordService(auth.NewMemoryStorage(), auth.WithBcryptCost(4))
	tokens, err := jwt.NewFromString("test-signing-key")
	require.NoError(t, err)

	svc := account.NewService(authSvc, tokens, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := chi.NewRouter()
	r.Mount("/auth", svc.Router())
	r.Group(func(r chi.Router) {
		r.Use(jwt.Middleware[auth.AccessClaims](tokens, nil))
		r.Mount("/account", svc.ProtectedRouter())
	})
	return r, authSvc
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type authBody struct {
	Data struct {
		User struct {
			ID                 string `json:"id"`
			Email              string `json:"email"`
			Plan               string `json:"plan"`
			SubscriptionStatus string `json:"subscription_status"`
		} `json:"user"`
		Token string `json:"token"`
	} `json:"data"`
}

func TestRegisterLoginMe(t *testing.T) {
	t.Parallel()

	h, _ := newHandler(t)

	rec := do(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "Jane@Example.com",
		"password": "s3cret-password",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var registered authBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &registered))
	assert.Equal(t, "jane@example.com", registered.Data.User.Email)
	assert.Equal(t, "free", registered.Data.User.Plan)
	assert.NotEmpty(t, registered.Data.Token)

	rec = do(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "jane@example.com",
		"password": "s3cret-password",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var logged authBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logged))
	require.NotEmpty(t, logged.Data.Token)

	rec = do(t, h, http.MethodGet, "/account/me", logged.Data.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var me struct {
		Data struct {
			Email string `json:"email"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "jane@example.com", me.Data.Email)
}

func TestRegisterRejections(t *testing.T) {
	t.Parallel()

	h, _ := newHandler(t)

	rec := do(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "not-an-email",
		"password": "s3cret-password",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "jane@example.com",
		"password": "short",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "jane@example.com",
		"password": "s3cret-password",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "jane@example.com",
		"password": "another-password",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginRejections(t *testing.T) {
	t.Parallel()

	h, _ := newHandler(t)

	rec := do(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "jane@example.com",
		"password": "s3cret-password",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Unknown email and wrong password must be indistinguishable.
	rec = do(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "jane@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "nobody@example.com",
		"password": "s3cret-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeRequiresToken(t *testing.T) {
	t.Parallel()

	h, _ := newHandler(t)

	rec := do(t, h, http.MethodGet, "/account/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyEmailEndpoint(t *testing.T) {
	t.Parallel()

	h, authSvc := newHandler(t)
	ctx := context.Background()

	rec := do(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "jane@example.com",
		"password": "s3cret-password",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	token, err := authSvc.StartEmailVerification(ctx, "jane@example.com")
	require.NoError(t, err)

	rec = do(t, h, http.MethodPost, "/auth/verify-email", "", map[string]string{"token": token})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			EmailVerified bool `json:"email_verified"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Data.EmailVerified)

	rec = do(t, h, http.MethodPost, "/auth/verify-email", "", map[string]string{"token": token})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPasswordResetEndpoints(t *testing.T) {
	t.Parallel()

	h, authSvc := newHandler(t)
	ctx := context.Background()

	rec := do(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "jane@example.com",
		"password": "old-password-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// The forgot endpoint answers identically for known and unknown emails.
	rec = do(t, h, http.MethodPost, "/auth/password/forgot", "", map[string]string{"email": "jane@example.com"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodPost, "/auth/password/forgot", "", map[string]string{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusOK, rec.Code)

	token, err := authSvc.RequestPasswordReset(ctx, "jane@example.com")
	require.NoError(t, err)

	rec = do(t, h, http.MethodPost, "/auth/password/reset", "", map[string]string{
		"token":    token,
		"password": "new-password-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "jane@example.com",
		"password": "old-password-1",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "jane@example.com",
		"password": "new-password-1",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/auth/password/reset", "", map[string]string{
		"token":    "bogus",
		"password": "new-password-2",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
