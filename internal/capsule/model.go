package capsule

import (
	"time"

	"github.com/lib/pq"
)

// Capsule delivery states. A capsule only reaches StatusDelivered after a
// successful notification send; StatusDelivering marks a claimed capsule
// so overlapping sweeps cannot double-send.
const (
	StatusScheduled  = "scheduled"
	StatusDelivering = "delivering"
	StatusDelivered  = "delivered"
	StatusFailed     = "failed"
)

type Capsule struct {
	ID     uint64 `gorm:"primaryKey"`
	UserID uint64 `gorm:"index;not null"`

	Title   string `gorm:"not null"`
	Content string `gorm:"type:text;not null"`

	Images pq.StringArray `gorm:"type:text[];not null;default:'{}'"`

	DeliveryDate time.Time `gorm:"index;not null"`
	Status       string    `gorm:"index;not null;default:'scheduled'"`

	// AIReflection is populated out-of-band by the reflections sweep.
	AIReflection *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	// UpdatedAt doubles as the claim heartbeat: a capsule stuck in
	// StatusDelivering with an old UpdatedAt belongs to a sweep that died.
	UpdatedAt   time.Time  `gorm:"not null"`
	DeliveredAt *time.Time `gorm:"type:timestamptz"`
}

// DeliveryLog is an append-only audit record of one delivery attempt.
type DeliveryLog struct {
	ID        uint64    `gorm:"primaryKey"`
	CapsuleID uint64    `gorm:"index;not null"`
	UserID    uint64    `gorm:"index;not null"`
	Status    string    `gorm:"not null"` // success / failed
	Method    string    `gorm:"not null;default:'email'"`
	Error     *string   `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null"`
}
