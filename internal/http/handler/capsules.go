package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"pastel/internal/auth"
	"pastel/internal/cache"
	"pastel/internal/capsule"
)

type CapsuleHandler struct {
	Svc   *capsule.Service
	Users *auth.Users
	Cache *cache.Cache
}

type composeReq struct {
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	DeliveryDate string   `json:"delivery_date"` // RFC3339
	Images       []string `json:"images"`
}

type capsuleDTO struct {
	ID            uint64     `json:"id"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Images        []string   `json:"images"`
	DeliveryDate  time.Time  `json:"delivery_date"`
	Status        string     `json:"status"`
	AIReflection  *string    `json:"ai_reflection,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	RemainingDays *int       `json:"remaining_days,omitempty"`
}

func toDTO(c capsule.Capsule) capsuleDTO {
	return capsuleDTO{
		ID:           c.ID,
		Title:        c.Title,
		Content:      c.Content,
		Images:       []string(c.Images),
		DeliveryDate: c.DeliveryDate,
		Status:       c.Status,
		AIReflection: c.AIReflection,
		CreatedAt:    c.CreatedAt,
		DeliveredAt:  c.DeliveredAt,
	}
}

func (h *CapsuleHandler) Compose(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r, h.Users)
	if !ok {
		return
	}

	var req composeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	deliveryDate, err := time.Parse(time.RFC3339, strings.TrimSpace(req.DeliveryDate))
	if err != nil {
		http.Error(w, "invalid delivery_date (RFC3339)", http.StatusBadRequest)
		return
	}

	c, err := h.Svc.Create(r.Context(), u.ID, capsule.CreateInput{
		Title:        req.Title,
		Content:      req.Content,
		DeliveryDate: deliveryDate,
		Images:       req.Images,
	})
	if err != nil {
		if err == capsule.ErrInvalid {
			http.Error(w, "title, content and delivery_date required", http.StatusBadRequest)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	h.Cache.Invalidate(r.Context(), dashboardCacheKey(u.ID))

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": toDTO(c)})
}

func (h *CapsuleHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r, h.Users)
	if !ok {
		return
	}

	caps, err := h.Svc.Upcoming(r.Context(), u.ID)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	out := make([]capsuleDTO, 0, len(caps))
	for _, c := range caps {
		dto := toDTO(c)
		days := capsule.RemainingDays(c.DeliveryDate, now)
		dto.RemainingDays = &days
		out = append(out, dto)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": out})
}

func (h *CapsuleHandler) Delivered(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r, h.Users)
	if !ok {
		return
	}

	caps, err := h.Svc.Delivered(r.Context(), u.ID)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	out := make([]capsuleDTO, 0, len(caps))
	for _, c := range caps {
		out = append(out, toDTO(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": out})
}

func (h *CapsuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r, h.Users)
	if !ok {
		return
	}
	id, err := capsuleID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	c, err := h.Svc.Get(r.Context(), u.ID, id)
	if err != nil {
		if err == capsule.ErrNotFound {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(c))
}

func (h *CapsuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r, h.Users)
	if !ok {
		return
	}
	id, err := capsuleID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := h.Svc.Delete(r.Context(), u.ID, id); err != nil {
		if err == capsule.ErrNotFound {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	h.Cache.Invalidate(r.Context(), dashboardCacheKey(u.ID))
	w.WriteHeader(http.StatusNoContent)
}

func capsuleID(r *http.Request) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
}

func dashboardCacheKey(userID uint64) string {
	return fmt.Sprintf("dashboard-stats:%d", userID)
}
