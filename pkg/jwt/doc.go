// Package jwt implements HS256 JWT signing and verification on top of the
// standard library, plus HTTP middleware that resolves bearer tokens into
// typed claims stored in the request context.
package jwt
