package handler

import (
	"net/http"
	"time"

	"pastel/internal/auth"
	"pastel/internal/cache"
	"pastel/internal/capsule"
)

const dashboardCacheTTL = 30 * time.Second

type DashboardHandler struct {
	Svc   *capsule.Service
	Users *auth.Users
	Cache *cache.Cache
}

func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r, h.Users)
	if !ok {
		return
	}

	key := dashboardCacheKey(u.ID)
	var stats capsule.DashboardStats
	if h.Cache.Get(r.Context(), key, &stats) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": stats, "cached": true})
		return
	}

	stats, err := h.Svc.Dashboard(r.Context(), u.ID)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	h.Cache.Set(r.Context(), key, stats, dashboardCacheTTL)

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": stats})
}
