package sentiment

import (
	"math"
	"testing"

	"moodlog/internal/domain"
)

func TestAnalyzeEmptyTextYieldsNil(t *testing.T) {
	t.Parallel()

	analyzer := NewAnalyzer()
	if got := analyzer.Analyze(""); got != nil {
		t.Fatalf("expected nil for empty text, got %+v", got)
	}
	if got := analyzer.Analyze("   \n\t "); got != nil {
		t.Fatalf("expected nil for whitespace, got %+v", got)
	}
}

func TestAnalyzeLabels(t *testing.T) {
	t.Parallel()

	analyzer := NewAnalyzer()

	cases := []struct {
		name string
		text string
		want domain.SentimentLabel
	}{
		{"positive", "today was a wonderful happy day", domain.SentimentPositive},
		{"negative", "everything is terrible and I feel sad", domain.SentimentNegative},
		{"neutral", "I walked to the store and bought milk", domain.SentimentNeutral},
		{"single mild word stays neutral", "warm", domain.SentimentNeutral},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := analyzer.Analyze(tc.text)
			if got == nil {
				t.Fatalf("expected a score")
			}
			if got.Label != tc.want {
				t.Fatalf("text %q: expected %s, got %s (score %v)", tc.text, tc.want, got.Label, got.Score)
			}
		})
	}
}

func TestAnalyzeComparativeIsScorePerToken(t *testing.T) {
	t.Parallel()

	analyzer := NewAnalyzer()
	got := analyzer.Analyze("happy happy sad") // 3 + 3 - 2 over 3 tokens
	if got == nil {
		t.Fatalf("expected a score")
	}
	if got.Score != 4 {
		t.Fatalf("unexpected score: %v", got.Score)
	}
	if math.Abs(got.Comparative-4.0/3.0) > 1e-9 {
		t.Fatalf("unexpected comparative: %v", got.Comparative)
	}
}

func TestAnalyzeIsCaseAndPunctuationInsensitive(t *testing.T) {
	t.Parallel()

	analyzer := NewAnalyzer()
	a := analyzer.Analyze("HAPPY, wonderful!")
	b := analyzer.Analyze("happy wonderful")
	if a == nil || b == nil || a.Score != b.Score {
		t.Fatalf("expected identical scores, got %+v vs %+v", a, b)
	}
}

func TestCustomLexiconOverrides(t *testing.T) {
	t.Parallel()

	analyzer := NewAnalyzerWithLexicon(map[string]float64{"meh": -2, "happy": 0})
	got := analyzer.Analyze("meh happy")
	if got == nil || got.Score != -2 {
		t.Fatalf("expected overridden score -2, got %+v", got)
	}
	if got.Label != domain.SentimentNegative {
		t.Fatalf("unexpected label %s", got.Label)
	}
}
