package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"gorm.io/gorm"

	"pastel/internal/auth"
	"pastel/internal/delivery"
)

// DeliveryRunner is the slice of the delivery engine the trigger
// endpoints need; tests stub it.
type DeliveryRunner interface {
	ProcessPending(ctx context.Context) delivery.Result
	RetryFailed(ctx context.Context) delivery.Result
}

type AdminHandler struct {
	DB     *gorm.DB
	Users  *auth.Users
	Runner DeliveryRunner
}

func (h *AdminHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	u, ok := currentUser(w, r, h.Users)
	if !ok {
		return false
	}
	if u.Role != "admin" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
		return false
	}
	return true
}

type triggerReq struct {
	Action string `json:"action"`
}

func (h *AdminHandler) TriggerDelivery(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req triggerReq
	_ = json.NewDecoder(r.Body).Decode(&req)

	var result delivery.Result
	message := "Delivery process completed"
	if req.Action == "retry" {
		result = h.Runner.RetryFailed(r.Context())
		message = "Retry process completed"
	} else {
		result = h.Runner.ProcessPending(r.Context())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": result.Success,
		"message": message,
		"details": result,
	})
}

type deliveryStatRow struct {
	Status string `gorm:"column:status" json:"status"`
	Count  int64  `gorm:"column:count" json:"count"`
}

func (h *AdminHandler) DeliveryStats(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var rows []deliveryStatRow
	err := h.DB.WithContext(r.Context()).
		Table("delivery_logs").
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	var pending int64
	if err := h.DB.WithContext(r.Context()).
		Table("capsules").
		Where("status in ?", []string{"scheduled", "failed"}).
		Count(&pending).Error; err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"attempts": rows,
			"pending":  pending,
		},
	})
}
