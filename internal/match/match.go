// Package match decides whether a recognized utterance counts as a correct
// pronunciation of a target word. Matching is deliberately strict: after
// normalization a candidate must equal the whole transcript or appear as an
// exact whitespace-delimited token. There is no fuzzy or substring matching,
// so "two" never matches inside "twenty-two".
package match

import "strings"

// punctuation covers the characters recognition engines (mobile browsers in
// particular) tend to append to transcripts.
const punctuation = ".,/#!$%^&*;:{}=-_'`~()"

// Normalize lowercases, trims, and strips punctuation from an utterance.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(punctuation, r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// Matches reports whether transcript contains the target word or one of its
// alternates. Both sides are normalized; a hit requires the whole transcript
// to equal a candidate or the candidate to appear as an exact token.
func Matches(transcript, target string, alts []string) bool {
	spoke := Normalize(transcript)
	if spoke == "" {
		return false
	}
	tokens := strings.Fields(spoke)

	candidates := make([]string, 0, len(alts)+1)
	if c := Normalize(target); c != "" {
		candidates = append(candidates, c)
	}
	for _, alt := range alts {
		if c := Normalize(alt); c != "" {
			candidates = append(candidates, c)
		}
	}

	for _, candidate := range candidates {
		if spoke == candidate {
			return true
		}
		for _, token := range tokens {
			if token == candidate {
				return true
			}
		}
	}
	return false
}
