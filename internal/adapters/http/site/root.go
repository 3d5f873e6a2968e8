// Package site serves the embedded single-page leaderboard UI.
package site

import (
	"context"
	"net/http"
)

// Register attaches the embedded UI at the mux root.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("/", http.FileServer(FS()))
}
