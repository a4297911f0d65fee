package moderation

import "strings"

// toxicWords is the fixed lexicon behind the deterministic fallback
// scorer, matching both English and Portuguese slurs the service was
// originally tuned for.
var toxicWords = []string{
	"hate", "kill", "stupid", "idiot",
	"ódio", "matar", "idiota",
}

const (
	fallbackToxicScore = 0.85
	fallbackCleanScore = 0.15
)

// FallbackScore is the deterministic substitute used when the remote
// classifier is unconfigured or unavailable: a case-insensitive
// substring match against the lexicon, scoring 0.85 on a hit and 0.15
// otherwise. Sub-attribute scores are fixed fractions of the headline
// score.
func FallbackScore(text string, allScores bool) *Score {
	lower := strings.ToLower(text)
	value := fallbackCleanScore
	for _, word := range toxicWords {
		if strings.Contains(lower, word) {
			value = fallbackToxicScore
			break
		}
	}

	score := &Score{Toxicity: value}
	if allScores {
		score.Attributes = map[string]float64{
			"TOXICITY":        value,
			"SEVERE_TOXICITY": value * 0.5,
			"IDENTITY_ATTACK": value * 0.3,
			"INSULT":          value * 0.8,
			"PROFANITY":       value * 0.6,
			"THREAT":          value * 0.2,
		}
	}
	return score
}
