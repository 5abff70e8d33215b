package lyrics

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	annotationPattern = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	trailingSeparator = regexp.MustCompile(`[\s\-_~]+$`)
	punctuation       = regexp.MustCompile(`[:"',.?!]`)
	whitespace        = regexp.MustCompile(`\s+`)
)

// NormalizeText folds a title or artist into a comparable form: lowercase,
// accent-free, without (feat. ...) / [Remastered] annotations.
func NormalizeText(s string) string {
	s = strings.ToLower(s)
	s = stripDiacritics(s)
	s = annotationPattern.ReplaceAllString(s, " ")
	s = trailingSeparator.ReplaceAllString(strings.TrimSpace(s), "")
	s = punctuation.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Query is the reference track a search is scored against.
type Query struct {
	Title        string
	Artist       string
	DurationSecs float64
}

// ScoreMatch rates a candidate against the reference on a 0-100 scale.
func ScoreMatch(q Query, c Candidate) int {
	score := 0

	score += fieldScore(NormalizeText(q.Title), NormalizeText(c.Name), 40, 10)
	score += fieldScore(NormalizeText(q.Artist), NormalizeText(c.Artist), 30, 15)

	if q.DurationSecs > 0 && c.DurationSecs > 0 {
		diff := math.Abs(q.DurationSecs - c.DurationSecs)
		switch {
		case diff <= 2:
			score += 20
		case diff <= 5:
			score += 10
		}
	}

	return score
}

func fieldScore(want, got string, exact, partial int) int {
	if want == "" || got == "" {
		return 0
	}
	if want == got {
		return exact
	}
	if strings.Contains(want, got) || strings.Contains(got, want) {
		return partial
	}
	return 0
}
