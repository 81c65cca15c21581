package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"pastel/internal/auth"
	"pastel/internal/capsule"
	"pastel/internal/ratelimit"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables
	if err := gdb.AutoMigrate(
		&auth.User{},
		&capsule.Capsule{},
		&capsule.DeliveryLog{},
		&ratelimit.RateLimit{},
	); err != nil {
		return err
	}

	// Email uniqueness only where set; lazily provisioned identities
	// have no email yet.
	if err := gdb.Exec(`
create unique index if not exists uq_users_email
on users(email)
where email <> '';
`).Error; err != nil {
		return err
	}

	// Helpful indexes
	stmts := []string{
		`create index if not exists idx_capsules_due on capsules(status, delivery_date);`,
		`create index if not exists idx_capsules_user_created on capsules(user_id, created_at desc);`,
		`create index if not exists idx_delivery_logs_capsule on delivery_logs(capsule_id, created_at desc);`,
		`create index if not exists idx_rate_limits_window on rate_limits(window_start);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
