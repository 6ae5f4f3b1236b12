package server

import (
	"encoding/json"
	"net/http"
)

// version is the daemon's reported build version (§6 "GET /health").
const version = "0.1.0"

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// HealthHandler answers GET /health with a liveness probe (§6).
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(healthResponse{Status: "ok", Version: version})
	}
}
