// Package core defines the HTTP response envelope and error vocabulary
// shared by every API module. All responses are JSON; errors carry stable
// machine-readable keys so clients never parse messages.
package core
