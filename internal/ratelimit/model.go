package ratelimit

import "time"

// RateLimit is one fixed-window counter. At most one row exists per
// (user, endpoint, window start); old windows are retained rather than
// reset in place.
type RateLimit struct {
	ID          uint64    `gorm:"primaryKey"`
	UserID      uint64    `gorm:"uniqueIndex:uq_rate_limits_window;not null"`
	Endpoint    string    `gorm:"uniqueIndex:uq_rate_limits_window;not null"`
	WindowStart time.Time `gorm:"uniqueIndex:uq_rate_limits_window;not null"`
	Count       int       `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}
