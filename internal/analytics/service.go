package analytics

import (
	"context"
	"math"
	"time"

	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

type Stats struct {
	TotalMemories  int64   `json:"total_memories"`
	EmotionalScore float64 `json:"emotional_score"`
	AIInsights     int64   `json:"ai_insights"`
}

// entry is a narrow scan over capsules; the full model drags in columns
// these aggregates never touch.
type entry struct {
	Content      string    `gorm:"column:content"`
	AIReflection *string   `gorm:"column:ai_reflection"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (entry) TableName() string { return "capsules" }

func (s *Service) Stats(ctx context.Context, userID uint64) (Stats, error) {
	var rows []entry
	if err := s.DB.WithContext(ctx).
		Select("content", "ai_reflection").
		Where("user_id = ?", userID).
		Find(&rows).Error; err != nil {
		return Stats{}, err
	}

	out := Stats{TotalMemories: int64(len(rows)), EmotionalScore: 5}
	if len(rows) > 0 {
		sum := 0.0
		for _, r := range rows {
			sum += EmotionalScore(r.Content)
			if r.AIReflection != nil && *r.AIReflection != "" {
				out.AIInsights++
			}
		}
		out.EmotionalScore = round2(sum / float64(len(rows)))
	}
	return out, nil
}

type Day struct {
	Date  string  `json:"date"`
	Score float64 `json:"score"`
	Count int     `json:"count"`
}

type Heatmap struct {
	Days []Day `json:"days"`
}

// HeatmapDays is the span of the emotional heatmap.
const HeatmapDays = 365

func (s *Service) Heatmap(ctx context.Context, userID uint64) (Heatmap, error) {
	since := time.Now().AddDate(0, 0, -HeatmapDays)

	var rows []entry
	if err := s.DB.WithContext(ctx).
		Select("content", "created_at").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at asc").
		Find(&rows).Error; err != nil {
		return Heatmap{}, err
	}

	scored := make([]ScoredEntry, 0, len(rows))
	for _, r := range rows {
		scored = append(scored, ScoredEntry{At: r.CreatedAt, Score: EmotionalScore(r.Content)})
	}
	return Heatmap{Days: BucketByDay(scored, HeatmapDays, time.Now())}, nil
}

type ScoredEntry struct {
	At    time.Time
	Score float64
}

// BucketByDay produces one cell per day over the trailing span, oldest
// first, averaging the scores of entries created that day (UTC).
func BucketByDay(entries []ScoredEntry, span int, today time.Time) []Day {
	byDay := make(map[string][]float64)
	for _, e := range entries {
		key := e.At.UTC().Format("2006-01-02")
		byDay[key] = append(byDay[key], e.Score)
	}

	days := make([]Day, 0, span)
	for i := 0; i < span; i++ {
		d := today.UTC().AddDate(0, 0, -(span - 1 - i))
		key := d.Format("2006-01-02")
		scores := byDay[key]

		avg := 0.0
		if len(scores) > 0 {
			sum := 0.0
			for _, s := range scores {
				sum += s
			}
			avg = sum / float64(len(scores))
		}
		days = append(days, Day{Date: key, Score: round2(avg), Count: len(scores)})
	}
	return days
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
