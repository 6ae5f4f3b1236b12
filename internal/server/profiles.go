package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oho/chunking-daemon/internal/chunk"
	"github.com/oho/chunking-daemon/internal/profile"
)

type profilesResponse struct {
	Profiles []chunk.Profile `json:"profiles"`
	Active   string          `json:"active"`
}

type setActiveRequest struct {
	Name string `json:"name"`
}

// ProfilesRouter implements the /chunk/profiles surface (§6): list, read
// the active profile, and set a new active profile.
func ProfilesRouter(store *profile.Store) chi.Router {
	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, profilesResponse{
			Profiles: store.List(),
			Active:   store.Active().Name,
		})
	})

	r.Get("/active", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, store.Active())
	})

	r.Put("/active", func(w http.ResponseWriter, r *http.Request) {
		var req setActiveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}
		p, err := store.SetActive(req.Name)
		if err != nil {
			http.Error(w, "unknown profile", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, p)
	})

	return r
}
