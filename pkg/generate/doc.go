// Package generate defines the boundary to external model providers. The
// application never interprets provider responses beyond success or failure;
// concrete providers implement Generator and are wired at startup.
package generate
