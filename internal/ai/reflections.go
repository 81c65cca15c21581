package ai

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"

	"pastel/internal/capsule"
)

// Reflector abstracts the completion API so the sweep is testable.
type Reflector interface {
	Reflect(ctx context.Context, capsuleContent string) (string, error)
}

// Reflections backfills AI commentary on delivered capsules that have
// none yet. Failures are isolated per capsule, same as the delivery
// sweep.
type Reflections struct {
	DB        *gorm.DB
	Reflector Reflector
	// BatchSize caps the completion calls per sweep.
	BatchSize int
}

type ReflectionResult struct {
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
}

type pendingCapsule struct {
	ID      uint64 `gorm:"column:id"`
	Content string `gorm:"column:content"`
}

func (pendingCapsule) TableName() string { return "capsules" }

func (r *Reflections) Run(ctx context.Context) ReflectionResult {
	res := ReflectionResult{Errors: []string{}}

	limit := r.BatchSize
	if limit <= 0 {
		limit = 20
	}

	var rows []pendingCapsule
	err := r.DB.WithContext(ctx).
		Select("id", "content").
		Where("status = ? AND ai_reflection IS NULL", capsule.StatusDelivered).
		Order("delivered_at asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("critical: %v", err))
		return res
	}

	for _, row := range rows {
		text, err := r.Reflector.Reflect(ctx, row.Content)
		if err != nil {
			log.Printf("[reflections] capsule %d: %v\n", row.ID, err)
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("capsule %d: %v", row.ID, err))
			continue
		}
		if err := r.DB.WithContext(ctx).Model(&capsule.Capsule{}).
			Where("id = ?", row.ID).
			Update("ai_reflection", text).Error; err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("capsule %d: %v", row.ID, err))
			continue
		}
		res.Processed++
	}
	return res
}
