package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleBuildStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"builds":      s.orchestrator.Builds(),
		"archived":    s.orchestrator.ArchivedCount(),
		"queue_depth": s.orchestrator.QueueDepth(),
		"latency":     s.orchestrator.Stats(),
	})
}
