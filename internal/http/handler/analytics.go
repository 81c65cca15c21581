package handler

import (
	"net/http"

	"pastel/internal/analytics"
	"pastel/internal/auth"
)

type AnalyticsHandler struct {
	Svc   *analytics.Service
	Users *auth.Users
}

func (h *AnalyticsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r, h.Users)
	if !ok {
		return
	}

	stats, err := h.Svc.Stats(r.Context(), u.ID)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": stats})
}

func (h *AnalyticsHandler) Heatmap(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r, h.Users)
	if !ok {
		return
	}

	hm, err := h.Svc.Heatmap(r.Context(), u.ID)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": hm})
}
