// internal/resolver/match.go
package resolver

import (
	"strings"
	"unicode"
)

const (
	// ScoreExact is awarded when the normalized texts are equal.
	ScoreExact = 200
	// ScoreSubstring is awarded when the desired text appears inside the element text.
	ScoreSubstring = 100
	// scorePerToken is awarded per matching token on the token path. The token
	// path can never reach ScoreSubstring because real titles are short.
	scorePerToken = 10
	// minTokenLen drops short tokens such as "in", "at", "fl" from token matching.
	minTokenLen = 3
)

// MatchScore rates how well actual (an element's visible text) matches desired.
// Zero means no match. An empty desired text matches anything with score 1.
func MatchScore(desired, actual string) int {
	d := normalizeText(desired)
	if d == "" {
		return 1
	}
	a := normalizeText(actual)
	if a == "" {
		return 0
	}
	if a == d {
		return ScoreExact
	}
	if strings.Contains(a, d) {
		return ScoreSubstring
	}

	want := Tokens(d)
	if len(want) == 0 {
		return 0
	}
	have := Tokens(a)

	matched := 0
	for _, w := range want {
		for _, h := range have {
			if strings.Contains(h, w) || strings.Contains(w, h) {
				matched++
				break
			}
		}
	}

	required := 2
	if len(want) < required {
		required = len(want)
	}
	if matched < required {
		return 0
	}
	score := matched * scorePerToken
	if score >= ScoreSubstring {
		score = ScoreSubstring - 1
	}
	return score
}

// Matches reports whether MatchScore accepts actual for desired.
func Matches(desired, actual string) bool {
	return MatchScore(desired, actual) > 0
}

// Tokens splits normalized text on whitespace and punctuation, dropping short tokens.
func Tokens(s string) []string {
	fields := strings.FieldsFunc(normalizeText(s), func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '\'' && r != '&')
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= minTokenLen {
			out = append(out, f)
		}
	}
	return out
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// VerbFilter accepts action labels that contain an allowed verb and no denied one.
type VerbFilter struct {
	Allow []string
	Deny  []string
}

// Accepts checks label against the filter. An empty allow list accepts any label
// that is not denied.
func (f VerbFilter) Accepts(label string) bool {
	l := normalizeText(label)
	for _, d := range f.Deny {
		if containsPhrase(l, d) {
			return false
		}
	}
	if len(f.Allow) == 0 {
		return true
	}
	for _, a := range f.Allow {
		if containsPhrase(l, a) {
			return true
		}
	}
	return false
}

// containsPhrase matches phrase at the start of a word, so "book" matches
// "Book now" and "booking" but not "Facebook".
func containsPhrase(text, phrase string) bool {
	phrase = normalizeText(phrase)
	if phrase == "" {
		return false
	}
	for start := 0; start <= len(text)-len(phrase); {
		i := strings.Index(text[start:], phrase)
		if i < 0 {
			return false
		}
		i += start
		if i == 0 || !isWordByte(text[i-1]) {
			return true
		}
		start = i + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
