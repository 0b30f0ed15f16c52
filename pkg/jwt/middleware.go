package jwt

import (
	"net/http"
	"strings"
)

// ErrorHandler renders an authentication failure. Defaults to a plain 401.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Middleware returns HTTP middleware that extracts a bearer token, verifies
// it, and stores the parsed claims of type T in the request context. A fresh
// claims value is allocated per request so downstream handlers get an
// isolated copy.
func Middleware[T any](service *Service, onError ErrorHandler) func(next http.Handler) http.Handler {
	if onError == nil {
		onError = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := BearerToken(r)
			if err != nil {
				onError(w, r, err)
				return
			}

			var claims T
			if err := service.Parse(tokenString, &claims); err != nil {
				onError(w, r, err)
				return
			}

			ctx := SetToken(r.Context(), tokenString)
			ctx = SetClaims(ctx, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts a token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrInvalidToken
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", ErrInvalidToken
	}
	return parts[1], nil
}
