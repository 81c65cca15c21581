package analytics

import "strings"

var positiveWords = []string{
	"happy", "joy", "grateful", "love", "excited", "hope", "proud", "calm", "peace",
	"optimistic", "great", "good", "amazing", "wonderful", "relaxed", "content",
}

var negativeWords = []string{
	"sad", "angry", "anxious", "worried", "stress", "tired", "upset", "fear", "regret",
	"pain", "bad", "terrible", "awful", "lonely", "frustrated", "overwhelmed",
}

// EmotionalScore maps a capsule entry to a 0-10 score. Word hits are
// summed, clamped to [-5, 5], then shifted onto the 0-10 scale. Empty
// text scores neutral.
func EmotionalScore(text string) float64 {
	if text == "" {
		return 5
	}
	t := strings.ToLower(text)

	score := 0
	for _, w := range positiveWords {
		if strings.Contains(t, w) {
			score++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(t, w) {
			score--
		}
	}

	if score > 5 {
		score = 5
	}
	if score < -5 {
		score = -5
	}
	return float64(score + 5)
}
