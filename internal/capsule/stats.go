package capsule

import (
	"context"
	"time"
)

type RecentCapsule struct {
	ID           uint64    `gorm:"column:id" json:"id"`
	Title        string    `gorm:"column:title" json:"title"`
	DeliveryDate time.Time `gorm:"column:delivery_date" json:"delivery_date"`
	Status       string    `gorm:"column:status" json:"status"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

type DashboardStats struct {
	TotalCapsules     int64           `json:"total_capsules"`
	UpcomingCapsules  int64           `json:"upcoming_capsules"`
	DeliveredCapsules int64           `json:"delivered_capsules"`
	RecentCapsules    []RecentCapsule `json:"recent_capsules"`
}

func (s *Service) Dashboard(ctx context.Context, userID uint64) (DashboardStats, error) {
	var out DashboardStats
	now := time.Now()
	db := s.DB.WithContext(ctx)

	if err := db.Model(&Capsule{}).Where("user_id = ?", userID).
		Count(&out.TotalCapsules).Error; err != nil {
		return out, err
	}
	if err := db.Model(&Capsule{}).
		Where("user_id = ? AND status = ? AND delivery_date > ?", userID, StatusScheduled, now).
		Count(&out.UpcomingCapsules).Error; err != nil {
		return out, err
	}
	if err := db.Model(&Capsule{}).
		Where("user_id = ? AND (delivery_date <= ? OR status = ?)", userID, now, StatusDelivered).
		Count(&out.DeliveredCapsules).Error; err != nil {
		return out, err
	}

	out.RecentCapsules = []RecentCapsule{}
	err := db.Model(&Capsule{}).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(5).
		Scan(&out.RecentCapsules).Error
	return out, err
}
