package ratelimit

import (
	"context"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Result struct {
	Success   bool
	Limit     int
	Remaining int
	Reset     time.Time
	// RetryAfter is whole seconds until the window rolls; only set on
	// rejection.
	RetryAfter int
}

type Limiter struct {
	DB *gorm.DB

	// now is swapped in tests.
	now func() time.Time
}

func NewLimiter(db *gorm.DB) *Limiter {
	return &Limiter{DB: db, now: time.Now}
}

func unlimited(reset time.Time) Result {
	return Result{Success: true, Limit: Unlimited, Remaining: Unlimited, Reset: reset}
}

// WindowStart aligns t down to the nearest window boundary in UTC.
func WindowStart(t time.Time, window time.Duration) time.Time {
	return t.UTC().Truncate(window)
}

// Check applies the fixed-window policy for one request. The count check
// and increment run as a single conditional UPDATE so concurrent requests
// for the same (user, endpoint, window) cannot overshoot the cap.
func (l *Limiter) Check(ctx context.Context, userID uint64, endpoint, plan string) (Result, error) {
	now := l.now()

	limits, ok := PlanLimits[plan]
	if !ok {
		return unlimited(now.Add(time.Hour)), nil
	}
	cfg, ok := limits[endpoint]
	if !ok {
		return unlimited(now.Add(time.Hour)), nil
	}
	if cfg.MaxRequests == Unlimited {
		return unlimited(now.Add(cfg.Window)), nil
	}

	windowStart := WindowStart(now, cfg.Window)
	reset := windowStart.Add(cfg.Window)
	db := l.DB.WithContext(ctx)

	// Ensure the counter row exists; a concurrent creator wins silently.
	row := RateLimit{
		UserID:      userID,
		Endpoint:    endpoint,
		WindowStart: windowStart,
		Count:       0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "endpoint"}, {Name: "window_start"}},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		return Result{}, err
	}

	res := db.Model(&RateLimit{}).
		Where("user_id = ? AND endpoint = ? AND window_start = ? AND count < ?",
			userID, endpoint, windowStart, cfg.MaxRequests).
		Updates(map[string]any{
			"count":      gorm.Expr("count + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return Result{}, res.Error
	}
	if res.RowsAffected == 0 {
		return Result{
			Success:    false,
			Limit:      cfg.MaxRequests,
			Remaining:  0,
			Reset:      reset,
			RetryAfter: int(math.Ceil(reset.Sub(now).Seconds())),
		}, nil
	}

	var cur RateLimit
	if err := db.Where("user_id = ? AND endpoint = ? AND window_start = ?",
		userID, endpoint, windowStart).First(&cur).Error; err != nil {
		return Result{}, err
	}
	return Result{
		Success:   true,
		Limit:     cfg.MaxRequests,
		Remaining: cfg.MaxRequests - cur.Count,
		Reset:     reset,
	}, nil
}

// PruneBefore deletes counter rows whose window started before cutoff.
// Purely a compaction aid; behavior inside live windows is unchanged.
func (l *Limiter) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := l.DB.WithContext(ctx).Where("window_start < ?", cutoff).Delete(&RateLimit{})
	return res.RowsAffected, res.Error
}
