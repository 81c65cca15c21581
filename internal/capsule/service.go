package capsule

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid capsule")
)

type Service struct {
	DB *gorm.DB
}

type CreateInput struct {
	Title        string
	Content      string
	DeliveryDate time.Time
	Images       []string
}

func (s *Service) Create(ctx context.Context, userID uint64, in CreateInput) (Capsule, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if in.Title == "" || in.Content == "" || in.DeliveryDate.IsZero() {
		return Capsule{}, ErrInvalid
	}

	c := Capsule{
		UserID:       userID,
		Title:        in.Title,
		Content:      in.Content,
		Images:       pq.StringArray(in.Images),
		DeliveryDate: in.DeliveryDate,
		Status:       StatusScheduled,
		CreatedAt:    time.Now(),
	}
	if c.Images == nil {
		c.Images = pq.StringArray{}
	}
	if err := s.DB.WithContext(ctx).Create(&c).Error; err != nil {
		return Capsule{}, err
	}
	return c, nil
}

// Upcoming lists the user's scheduled capsules with a future delivery
// date, earliest first.
func (s *Service) Upcoming(ctx context.Context, userID uint64) ([]Capsule, error) {
	var out []Capsule
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND status = ? AND delivery_date > ?", userID, StatusScheduled, time.Now()).
		Order("delivery_date asc").
		Find(&out).Error
	return out, err
}

func (s *Service) Delivered(ctx context.Context, userID uint64) ([]Capsule, error) {
	var out []Capsule
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, StatusDelivered).
		Order("delivered_at desc").
		Find(&out).Error
	return out, err
}

func (s *Service) Get(ctx context.Context, userID, id uint64) (Capsule, error) {
	var c Capsule
	err := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Capsule{}, ErrNotFound
	}
	return c, err
}

func (s *Service) Delete(ctx context.Context, userID, id uint64) error {
	res := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&Capsule{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RemainingDays rounds up to whole days until delivery.
func RemainingDays(deliveryDate, now time.Time) int {
	d := deliveryDate.Sub(now).Hours() / 24
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d))
}
