package projects

import "errors"

var (
	// ErrProjectNotFound is returned when no project matches the id for the
	// requesting owner. Another user's project id behaves the same way.
	ErrProjectNotFound = errors.New("projects: project not found")

	// ErrTitleRequired is returned when an edit would blank the title.
	ErrTitleRequired = errors.New("projects: title is required")
)
