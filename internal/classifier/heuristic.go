package classifier

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// inflammatoryKeywords are single terms counted case-insensitively.
// The lists are part of the scoring contract: the fallback scorer and the
// test suite both depend on them being fixed.
var inflammatoryKeywords = []string{
	"disgrace",
	"disgusting",
	"outrage",
	"scandal",
	"furious",
	"destroyed",
	"slammed",
	"pathetic",
	"traitor",
	"corrupt",
	"insane",
	"exposed",
	"humiliated",
	"meltdown",
}

// sensationalPhrases are framing patterns counted case-insensitively.
var sensationalPhrases = []string{
	"you won't believe",
	"shocking",
	"doctors hate",
	"they don't want you to know",
	"what happens next",
	"will blow your mind",
	"the real reason",
	"wake up people",
	"gone too far",
	"this is why we can't",
}

// Heuristic is the deterministic keyword scorer. It serves as the MVP
// primary scorer and as the permanent fallback when the richer model is
// unavailable. Stateless; zero value is usable.
type Heuristic struct{}

// NewHeuristic creates the heuristic classifier.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Name returns the classifier variant name.
func (h *Heuristic) Name() string {
	return "heuristic"
}

// Score computes the ragebait confidence. It is pure: equal inputs yield
// bit-identical outputs across calls.
func (h *Heuristic) Score(text string) (float64, error) {
	lower := strings.ToLower(text)

	score := 0.0

	keywordHits := 0
	for _, kw := range inflammatoryKeywords {
		keywordHits += strings.Count(lower, kw)
	}
	score += math.Min(0.08*float64(keywordHits), 0.5)

	phraseHits := 0
	for _, ph := range sensationalPhrases {
		phraseHits += strings.Count(lower, ph)
	}
	score += math.Min(0.12*float64(phraseHits), 0.36)

	if strings.Count(text, "!") >= 3 {
		score += 0.1
	}

	letters := 0
	uppers := 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				uppers++
			}
		}
	}
	if letters > 15 && float64(uppers)/float64(letters) > 0.35 {
		score += 0.1
	}

	// Short texts carry less signal: down-weighted, not excluded.
	// Length is in runes so multibyte text is not over-counted.
	if utf8.RuneCountInString(strings.TrimSpace(text)) < 30 {
		score *= 0.6
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, nil
}
