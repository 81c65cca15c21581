package delivery

import (
	"context"
	"time"

	"gorm.io/gorm"

	"pastel/internal/auth"
	"pastel/internal/capsule"
)

// GormStore backs the engine with the capsules and delivery_logs tables.
type GormStore struct {
	DB *gorm.DB
}

func (s *GormStore) Due(ctx context.Context, now time.Time) ([]capsule.Capsule, error) {
	var out []capsule.Capsule
	err := s.DB.WithContext(ctx).
		Where("status = ? AND delivery_date <= ?", capsule.StatusScheduled, now).
		Order("delivery_date asc").
		Find(&out).Error
	return out, err
}

func (s *GormStore) FailedDue(ctx context.Context, now time.Time) ([]capsule.Capsule, error) {
	var out []capsule.Capsule
	err := s.DB.WithContext(ctx).
		Where("status = ? AND delivery_date <= ?", capsule.StatusFailed, now).
		Order("delivery_date asc").
		Find(&out).Error
	return out, err
}

// Claim is a conditional transition; RowsAffected 0 means a concurrent
// sweep got there first.
func (s *GormStore) Claim(ctx context.Context, id uint64) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&capsule.Capsule{}).
		Where("id = ? AND status = ?", id, capsule.StatusScheduled).
		Update("status", capsule.StatusDelivering)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) MarkDelivered(ctx context.Context, id uint64, at time.Time) error {
	return s.DB.WithContext(ctx).Model(&capsule.Capsule{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       capsule.StatusDelivered,
			"delivered_at": at,
		}).Error
}

func (s *GormStore) MarkFailed(ctx context.Context, id uint64) error {
	return s.DB.WithContext(ctx).Model(&capsule.Capsule{}).
		Where("id = ?", id).
		Update("status", capsule.StatusFailed).Error
}

func (s *GormStore) Reschedule(ctx context.Context, id uint64) error {
	return s.DB.WithContext(ctx).Model(&capsule.Capsule{}).
		Where("id = ? AND status = ?", id, capsule.StatusFailed).
		Update("status", capsule.StatusScheduled).Error
}

// RequeueStale resets delivering capsules untouched since before the
// cutoff back to scheduled. Claim stamps updated_at, so a row that is
// both delivering and stale belongs to a sweep that never finished.
func (s *GormStore) RequeueStale(ctx context.Context, before time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&capsule.Capsule{}).
		Where("status = ? AND updated_at < ?", capsule.StatusDelivering, before).
		Update("status", capsule.StatusScheduled)
	return res.RowsAffected, res.Error
}

func (s *GormStore) AppendLog(ctx context.Context, entry capsule.DeliveryLog) error {
	return s.DB.WithContext(ctx).Create(&entry).Error
}

// UserIdentity resolves contact details from the users table. The
// display name falls back the way the original delivery flow does.
type UserIdentity struct {
	DB *gorm.DB
}

func (u *UserIdentity) Resolve(ctx context.Context, userID uint64) (Contact, error) {
	var user auth.User
	if err := u.DB.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return Contact{}, err
	}
	name := user.Name
	if name == "" {
		name = "Friend"
	}
	return Contact{Email: user.Email, Name: name}, nil
}
