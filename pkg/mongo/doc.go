// Package mongo provides a configured MongoDB client constructor with
// connection retries and a healthcheck probe.
package mongo
