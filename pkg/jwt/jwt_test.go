package jwt_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formexa/formexa/pkg/jwt"
)

type testClaims struct {
	jwt.StandardClaims
	Role string `json:"role,omitempty"`
}

func TestGenerateAndParse(t *testing.T) {
	t.Parallel()

	svc, err := jwt.NewFromString("test-signing-key-with-enough-bytes")
	require.NoError(t, err)

	token, err := svc.Generate(testClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   "user-1",
			Issuer:    "formexa",
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
		Role: "admin",
	})
	require.NoError(t, err)
	require.Equal(t, 3, len(strings.Split(token, ".")))

	var parsed testClaims
	require.NoError(t, svc.Parse(token, &parsed))
	assert.Equal(t, "user-1", parsed.Subject)
	assert.Equal(t, "formexa", parsed.Issuer)
	assert.Equal(t, "admin", parsed.Role)
}

func TestParseRejections(t *testing.T) {
	t.Parallel()

	svc, err := jwt.NewFromString("test-signing-key-with-enough-bytes")
	require.NoError(t, err)

	t.Run("expired token", func(t *testing.T) {
		t.Parallel()

		token, err := svc.Generate(testClaims{
			StandardClaims: jwt.StandardClaims{
				Subject:   "user-1",
				ExpiresAt: time.Now().Add(-time.Minute).Unix(),
			},
		})
		require.NoError(t, err)

		var parsed testClaims
		assert.ErrorIs(t, svc.Parse(token, &parsed), jwt.ErrExpiredToken)
	})

	t.Run("tampered payload", func(t *testing.T) {
		t.Parallel()

		token, err := svc.Generate(testClaims{
			StandardClaims: jwt.StandardClaims{Subject: "user-1"},
		})
		require.NoError(t, err)

		parts := strings.Split(token, ".")
		parts[1] += "xx"
		var parsed testClaims
		assert.ErrorIs(t, svc.Parse(strings.Join(parts, "."), &parsed), jwt.ErrInvalidSignature)
	})

	t.Run("wrong key", func(t *testing.T) {
		t.Parallel()

		other, err := jwt.NewFromString("a-completely-different-signing-key")
		require.NoError(t, err)
		token, err := other.Generate(testClaims{
			StandardClaims: jwt.StandardClaims{Subject: "user-1"},
		})
		require.NoError(t, err)

		var parsed testClaims
		assert.ErrorIs(t, svc.Parse(token, &parsed), jwt.ErrInvalidSignature)
	})

	t.Run("malformed token", func(t *testing.T) {
		t.Parallel()

		var parsed testClaims
		assert.ErrorIs(t, svc.Parse("not-a-token", &parsed), jwt.ErrInvalidToken)
	})
}

func TestNewRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := jwt.New(nil)
	assert.ErrorIs(t, err, jwt.ErrMissingSigningKey)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	svc, err := jwt.NewFromString("test-signing-key-with-enough-bytes")
	require.NoError(t, err)

	handler := jwt.Middleware[testClaims](svc, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := jwt.GetClaims[testClaims](r.Context())
		require.True(t, ok)
		w.Write([]byte(claims.Subject))
	}))

	t.Run("valid token reaches handler", func(t *testing.T) {
		t.Parallel()

		token, err := svc.Generate(testClaims{
			StandardClaims: jwt.StandardClaims{
				Subject:   "user-42",
				ExpiresAt: time.Now().Add(time.Hour).Unix(),
			},
		})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-42", rec.Body.String())
	})

	t.Run("missing header", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
