package analytics

import (
	"testing"
	"time"
)

func TestEmotionalScore(t *testing.T) {
	cases := []struct {
		name string
		text string
		want float64
	}{
		{"empty is neutral", "", 5},
		{"no signal words", "went to the store, bought bread", 5},
		{"positive", "so happy and grateful today, full of joy", 8},
		{"negative", "tired and anxious, everything feels bad", 2},
		{"mixed cancels out", "happy but tired", 5},
		{"case insensitive", "HAPPY GRATEFUL", 7},
		{"clamped high", "happy joy grateful love excited hope proud", 10},
		{"clamped low", "sad angry anxious worried stress tired upset", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EmotionalScore(tc.text); got != tc.want {
				t.Errorf("EmotionalScore(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestBucketByDay(t *testing.T) {
	today, _ := time.Parse(time.RFC3339, "2024-06-10T12:00:00Z")
	entries := []ScoredEntry{
		{At: today.AddDate(0, 0, -2).Add(time.Hour), Score: 8},
		{At: today.AddDate(0, 0, -2).Add(2 * time.Hour), Score: 5},
		{At: today, Score: 3},
	}

	days := BucketByDay(entries, 7, today)

	if len(days) != 7 {
		t.Fatalf("days = %d, want 7", len(days))
	}
	if days[0].Date != "2024-06-04" || days[6].Date != "2024-06-10" {
		t.Errorf("range = %s..%s, want 2024-06-04..2024-06-10", days[0].Date, days[6].Date)
	}

	twoBack := days[4]
	if twoBack.Count != 2 || twoBack.Score != 6.5 {
		t.Errorf("2024-06-08 cell = %+v, want count 2 avg 6.5", twoBack)
	}
	if days[6].Count != 1 || days[6].Score != 3 {
		t.Errorf("today cell = %+v, want count 1 score 3", days[6])
	}
	if days[1].Count != 0 || days[1].Score != 0 {
		t.Errorf("empty cell = %+v, want zeros", days[1])
	}
}
