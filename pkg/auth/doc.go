// Package auth provides password-based account registration and
// authentication. New accounts start on the free tier with no subscription;
// the billing layer owns every later plan change.
package auth
