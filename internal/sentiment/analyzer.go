// Package sentiment scores transcript text with an AFINN-style word
// valence lexicon. The rest of the system treats scoring as opaque and
// only depends on the ports.SentimentAnalyzer interface.
package sentiment

import (
	"strings"
	"unicode"

	"moodlog/internal/domain"
)

// Analyzer sums per-word valences over a transcript. Score is the raw sum,
// comparative is the sum divided by the token count.
type Analyzer struct {
	lexicon map[string]float64
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{lexicon: afinn}
}

// NewAnalyzerWithLexicon allows callers to extend or replace the built-in
// word list. Entries with the same word override the built-in valence.
func NewAnalyzerWithLexicon(extra map[string]float64) *Analyzer {
	merged := make(map[string]float64, len(afinn)+len(extra))
	for w, v := range afinn {
		merged[w] = v
	}
	for w, v := range extra {
		merged[strings.ToLower(w)] = v
	}
	return &Analyzer{lexicon: merged}
}

// Analyze scores text. Empty or whitespace-only text yields nil.
func (a *Analyzer) Analyze(text string) *domain.SentimentScore {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	var score float64
	for _, token := range tokens {
		score += a.lexicon[token]
	}

	return &domain.SentimentScore{
		Score:       score,
		Comparative: score / float64(len(tokens)),
		Label:       domain.LabelForScore(score),
	}
}

func tokenize(text string) []string {
	lowered := strings.ToLower(text)
	return strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}

// afinn holds a compact valence list in the AFINN tradition: integers in
// [-5, 5], strongly emotional words at the extremes.
var afinn = map[string]float64{
	"abandoned":    -2,
	"admire":       3,
	"adorable":     3,
	"afraid":       -2,
	"amazing":      4,
	"angry":        -3,
	"anxious":      -2,
	"appreciate":   2,
	"awesome":      4,
	"awful":        -3,
	"bad":          -3,
	"beautiful":    3,
	"best":         3,
	"bitter":       -2,
	"bless":        2,
	"bored":        -2,
	"brilliant":    4,
	"broken":       -1,
	"calm":         2,
	"celebrate":    3,
	"cheerful":     2,
	"comfortable":  2,
	"confident":    2,
	"confused":     -2,
	"cried":        -2,
	"cry":          -1,
	"damn":         -4,
	"dead":         -3,
	"defeated":     -2,
	"depressed":    -2,
	"disappointed": -2,
	"disaster":     -2,
	"dread":        -2,
	"dream":        1,
	"eager":        2,
	"ecstatic":     4,
	"embarrassed":  -2,
	"energetic":    2,
	"enjoy":        2,
	"excellent":    3,
	"excited":      3,
	"exhausted":    -2,
	"fail":         -2,
	"failure":      -2,
	"fantastic":    4,
	"fear":         -2,
	"fine":         2,
	"frustrated":   -2,
	"fun":          4,
	"furious":      -3,
	"glad":         3,
	"good":         3,
	"gorgeous":     3,
	"grateful":     3,
	"great":        3,
	"grief":        -2,
	"guilty":       -3,
	"happy":        3,
	"hate":         -3,
	"hateful":      -3,
	"heartbroken":  -3,
	"hell":         -4,
	"helpless":     -2,
	"hope":         2,
	"hopeful":      2,
	"hopeless":     -2,
	"horrible":     -3,
	"hurt":         -2,
	"inspired":     2,
	"interesting":  2,
	"joy":          3,
	"joyful":       3,
	"kind":         2,
	"laugh":        1,
	"lonely":       -2,
	"lost":         -3,
	"love":         3,
	"loved":        3,
	"lovely":       3,
	"lucky":        3,
	"mad":          -3,
	"miserable":    -3,
	"miss":         -2,
	"motivated":    2,
	"nervous":      -2,
	"nice":         3,
	"numb":         -1,
	"okay":         2,
	"outstanding":  5,
	"overwhelmed":  -2,
	"pain":         -2,
	"peaceful":     2,
	"perfect":      3,
	"pleased":      3,
	"proud":        2,
	"regret":       -2,
	"relaxed":      2,
	"relieved":     2,
	"sad":          -2,
	"scared":       -2,
	"sick":         -2,
	"smile":        2,
	"sorry":        -1,
	"strong":       2,
	"struggle":     -2,
	"stuck":        -2,
	"stressed":     -2,
	"superb":       5,
	"terrible":     -3,
	"terrific":     4,
	"thankful":     2,
	"thrilled":     5,
	"tired":        -2,
	"triumph":      4,
	"ugly":         -3,
	"upset":        -2,
	"warm":         1,
	"weary":        -2,
	"win":          4,
	"wonderful":    4,
	"worried":      -3,
	"worst":        -3,
	"worthless":    -2,
	"wow":          4,
}
