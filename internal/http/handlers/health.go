package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	s := a.Ledger.Status()
	status, code := "ok", http.StatusOK
	if !s.Synced || !s.Connected {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	a.json(w, code, map[string]any{
		"status":     status,
		"synced":     s.Synced,
		"connected":  s.Connected,
		"campaigns":  s.Campaigns,
		"checkpoint": s.Checkpoint,
		"buffered":   s.Buffered,
		"faults":     s.Faults,
		"discarded":  s.Discarded,
		"actor":      a.Ledger.Actor(),
	})
}
