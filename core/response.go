package core

import "net/http"

// Response is anything that can render itself onto an http.ResponseWriter.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// Respond renders resp and falls back to a bare 500 when rendering itself
// fails, which at that point is all that can be done.
func Respond(w http.ResponseWriter, r *http.Request, resp Response) {
	if err := resp.Render(w, r); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
