// Package email sends transactional mail through Postmark, with a file-based
// sender for development. Notifier layers the application's account and
// subscription lifecycle messages on top of the raw sender.
package email
