package emotion

import "github.com/your-org/emotion/internal/models"

// DominantEmotion picks the emotion with the greatest cumulative time.
// Ties go to the earlier of happy, sad, angry. All-zero counters are neutral.
func DominantEmotion(happy, sad, angry float64) models.Emotion {
	if happy == 0 && sad == 0 && angry == 0 {
		return models.EmotionNeutral
	}

	best, bestValue := models.EmotionHappy, happy
	if sad > bestValue {
		best, bestValue = models.EmotionSad, sad
	}
	if angry > bestValue {
		best = models.EmotionAngry
	}
	return best
}
