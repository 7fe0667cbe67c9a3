package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleConvertStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "convert stats unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"conversions":   s.stats.Snapshot(),
		"queue_depth":   s.orchestrator.QueueDepth(),
		"store_enabled": s.orchestrator.StoreEnabled(),
	})
}
