// Fast local keyword heuristic, run before the hosted classifier. A hit on
// an explicit term short-circuits to a violation verdict with no network
// call; anything below the short-circuit score still goes to the classifier
// for contextual judgment.
package keyword

import (
	"fmt"
	"regexp"
	"strings"
)

// Scores are on the same normalized 0-10 scale as classifier output.
const (
	// ExplicitTermScore is assigned when a configured explicit term appears
	// as a token in the message.
	ExplicitTermScore = 9.5

	// ShortCircuitScore is the minimum heuristic score that skips the
	// classifier entirely.
	ShortCircuitScore = 9.0
)

// PatternRule is a configured regex with the score a match contributes.
// Pattern scores below ShortCircuitScore act as a floor under the classifier
// score rather than a verdict on their own.
type PatternRule struct {
	Pattern string  `json:"pattern"`
	Score   float64 `json:"score"`
}

type compiledPattern struct {
	re    *regexp.Regexp
	score float64
}

// Heuristic matches messages against an explicit term list (token match,
// accent-folded) and a set of scored phrase patterns.
type Heuristic struct {
	explicit map[string]bool
	patterns []compiledPattern
}

func NewHeuristic(explicitTerms []string, patterns []PatternRule) (*Heuristic, error) {
	h := &Heuristic{
		explicit: make(map[string]bool, len(explicitTerms)),
	}
	for _, term := range explicitTerms {
		// normalize terms exactly the way message tokens are normalized
		for _, tok := range TokenizeText(term) {
			h.explicit[tok] = true
		}
	}
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling keyword pattern %q: %w", p.Pattern, err)
		}
		if p.Score <= 0 {
			return nil, fmt.Errorf("keyword pattern %q: score must be positive", p.Pattern)
		}
		h.patterns = append(h.patterns, compiledPattern{re: re, score: p.Score})
	}
	return h, nil
}

// Score returns the strongest heuristic signal for the text, or 0 when
// nothing matches.
func (h *Heuristic) Score(text string) float64 {
	var max float64
	for _, tok := range TokenizeText(text) {
		if h.explicit[tok] {
			max = ExplicitTermScore
			break
		}
	}
	lower := strings.ToLower(text)
	for _, p := range h.patterns {
		if p.score > max && p.re.MatchString(lower) {
			max = p.score
		}
	}
	return max
}
