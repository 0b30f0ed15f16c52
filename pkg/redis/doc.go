// Package redis provides a configured go-redis client constructor with
// connection retries and a healthcheck probe.
package redis
