package api

import (
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.opts.Claude == nil {
		jsonError(w, "LLM client not configured", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"model":       s.opts.Claude.Model(),
		"stats":       s.opts.Claude.Stats().Snapshot(),
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
