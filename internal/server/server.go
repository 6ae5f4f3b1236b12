// Package server provides the HTTP surface from spec §6: job submission
// and status, profile listing and activation, and a liveness probe.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// CORSMiddleware allows cross-origin requests from any client, mirroring
// the daemon's permissive local-tooling CORS policy. OPTIONS preflight
// requests are answered directly without reaching the inner handler.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewRouter builds a bare chi router with CORS applied; callers mount
// feature routers and register the health handler on top of it.
func NewRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(CORSMiddleware)
	return r
}
