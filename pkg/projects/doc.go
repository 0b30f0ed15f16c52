// Package projects persists generations the user chose to keep: the input
// prompt, the produced output and the provider metadata, owner-scoped. Saved
// projects can be listed with paging and a kind filter, retitled, tagged,
// published or deleted; the content itself is immutable after saving.
package projects
