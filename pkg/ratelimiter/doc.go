// Package ratelimiter provides a token bucket rate limiter with pluggable
// storage. MemoryStore serves single-process deployments; RedisStore shares
// buckets across instances with an atomic Lua script. Middleware applies a
// bucket to HTTP handlers with standard rate limit headers.
package ratelimiter
