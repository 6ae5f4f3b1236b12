package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oho/chunking-daemon/internal/chunk"
	"github.com/oho/chunking-daemon/internal/job"
	"github.com/oho/chunking-daemon/internal/profile"
)

type submitItem struct {
	ID          string         `json:"id"`
	ContentType string         `json:"content_type"`
	Content     string         `json:"content"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Entities    []chunk.Entity `json:"entities,omitempty"`
}

type submitRequest struct {
	SourceID   string           `json:"source_id"`
	SourceKind chunk.SourceKind `json:"source_kind"`
	Items      []submitItem     `json:"items"`
	Strategy   string           `json:"strategy,omitempty"`
}

type submitResponse struct {
	JobID      string `json:"job_id"`
	Accepted   bool   `json:"accepted"`
	ItemsCount int    `json:"items_count"`
	Message    string `json:"message,omitempty"`
}

// JobsRouter implements POST /chunk/jobs and GET /chunk/jobs/{id} (§6).
func JobsRouter(proc *job.Processor, registry *job.Registry, profiles *profile.Store) chi.Router {
	r := chi.NewRouter()

	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, submitResponse{Accepted: false, Message: "malformed request body"})
			return
		}
		if len(req.Items) == 0 {
			writeJSON(w, http.StatusBadRequest, submitResponse{Accepted: false, Message: "items must not be empty"})
			return
		}

		items := make([]chunk.SourceItem, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, chunk.SourceItem{
				ID:          it.ID,
				SourceID:    req.SourceID,
				SourceKind:  req.SourceKind,
				ContentType: it.ContentType,
				Content:     it.Content,
				Metadata:    it.Metadata,
				Entities:    it.Entities,
			})
		}

		cfg := profiles.Active().Config
		if req.Strategy != "" {
			cfg.Strategy = req.Strategy
		}

		rec, err := proc.Submit(r.Context(), req.SourceID, req.SourceKind, items, cfg)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, submitResponse{Accepted: false, Message: err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, submitResponse{
			JobID:      rec.ID,
			Accepted:   true,
			ItemsCount: len(items),
		})
	})

	r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		snap, ok := registry.Get(id)
		if !ok {
			http.Error(w, "unknown job", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
