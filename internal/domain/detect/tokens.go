package detect

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// tokenize splits lowercase text into words. '+' and '#' stay inside a word
// so that names like "c++" and "c#" survive.
func tokenize(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !isWordRune(r) && r != '+' && r != '#'
	})
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// containsWord reports whether phrase occurs in s delimited by non-word
// runes (or the ends of s) on both sides.
func containsWord(s, phrase string) bool {
	if phrase == "" {
		return false
	}
	for offset := 0; offset <= len(s)-len(phrase); {
		i := strings.Index(s[offset:], phrase)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(phrase)
		if boundaryBefore(s, start) && boundaryAfter(s, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		offset = start + size
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

// firstSubstring returns the first phrase of the list contained in s.
func firstSubstring(s string, phrases []string) (string, bool) {
	for _, p := range phrases {
		if p != "" && strings.Contains(s, p) {
			return p, true
		}
	}
	return "", false
}

// firstWord returns the first phrase of the list found as a whole word in s.
func firstWord(s string, phrases []string) (string, bool) {
	for _, p := range phrases {
		if containsWord(s, p) {
			return p, true
		}
	}
	return "", false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
