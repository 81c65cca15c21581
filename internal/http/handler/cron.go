package handler

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"pastel/internal/ai"
)

// ReflectionRunner is implemented by ai.Reflections.
type ReflectionRunner interface {
	Run(ctx context.Context) ai.ReflectionResult
}

// CronHandler serves the endpoints a scheduled trigger calls, guarded by
// a shared bearer secret.
type CronHandler struct {
	Secret      string
	Runner      DeliveryRunner
	Reflections ReflectionRunner
}

func (h *CronHandler) authorized(r *http.Request) bool {
	if h.Secret == "" {
		return false
	}
	header := r.Header.Get("Authorization")
	want := "Bearer " + h.Secret
	return subtle.ConstantTimeCompare([]byte(header), []byte(want)) == 1
}

func (h *CronHandler) DeliverCapsules(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
		return
	}

	result := h.Runner.ProcessPending(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"success": result.Success,
		"message": fmt.Sprintf("Processed %d capsules successfully, %d failed", result.Processed, result.Failed),
		"details": result,
	})
}

// Liveness lets the cron provider verify the endpoint without triggering
// a sweep.
func (h *CronHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Capsule delivery cron endpoint is active",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *CronHandler) AIReflections(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
		return
	}
	if h.Reflections == nil {
		http.Error(w, "reflections not configured", http.StatusServiceUnavailable)
		return
	}

	result := h.Reflections.Run(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"success": result.Failed == 0 && len(result.Errors) == 0,
		"message": fmt.Sprintf("Generated %d reflections, %d failed", result.Processed, result.Failed),
		"details": result,
	})
}
