package auth

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Subscription plans known to the rate-limit policy. Unrecognized values
// are allowed to exist on a row; the limiter fails open for them.
const (
	PlanFree     = "FREE"
	PlanPremium  = "PREMIUM"
	PlanUltimate = "ULTIMATE"
)

type User struct {
	ID uint64 `gorm:"primaryKey"`

	// ExternalID is the identity carried in the JWT subject. Locally
	// registered users get a generated one; identities provisioned
	// elsewhere are created lazily on first request.
	ExternalID string `gorm:"uniqueIndex;not null"`

	// Email uniqueness is enforced by a partial index (see db package):
	// lazily created identities start with an empty email.
	Email        string `gorm:"index;not null;default:''"`
	PasswordHash string `gorm:"not null"`
	Name         string `gorm:"not null;default:''"`

	Plan string `gorm:"not null;default:'FREE'"`
	Role string `gorm:"not null;default:''"`

	CreatedAt time.Time `gorm:"not null"`
}

type Users struct {
	DB *gorm.DB
}

// FindOrCreate resolves the account for an external identity, creating a
// FREE-plan row on first sight.
func (u *Users) FindOrCreate(ctx context.Context, externalID string) (User, error) {
	row := User{ExternalID: externalID, Plan: PlanFree}
	err := u.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoNothing: true,
		}).
		Create(&row).Error
	if err != nil {
		return User{}, err
	}

	// Re-read: on conflict the insert returns no row.
	var out User
	if err := u.DB.WithContext(ctx).Where("external_id = ?", externalID).First(&out).Error; err != nil {
		return User{}, err
	}
	return out, nil
}

func (u *Users) ByID(ctx context.Context, id uint64) (User, error) {
	var out User
	err := u.DB.WithContext(ctx).First(&out, "id = ?", id).Error
	return out, err
}
