package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleSystemStatus handles GET /api/system/status
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"service":        "detection-selector",
		"uptime_seconds": int(time.Since(s.start).Seconds()),
		"time":           time.Now().Format(time.RFC3339),
	})
}
