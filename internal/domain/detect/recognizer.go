package detect

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// ErrNoDate is returned by a DateRecognizer that found no date expression.
var ErrNoDate = errors.New("no date expression found")

// DateRecognizer finds a date or time expression in text and returns the
// matched span as it appears in the text.
type DateRecognizer interface {
	Recognize(text string, base time.Time) (string, error)
}

// NaturalRecognizer recognizes English date and time phrases such as
// "next friday", "tomorrow at 5pm" or "in 2 days".
type NaturalRecognizer struct {
	parser *when.Parser
}

// NewNaturalRecognizer builds a recognizer with the English and common rule sets.
func NewNaturalRecognizer() *NaturalRecognizer {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &NaturalRecognizer{parser: w}
}

// Recognize implements DateRecognizer.
func (n *NaturalRecognizer) Recognize(text string, base time.Time) (string, error) {
	res, err := n.parser.Parse(text, base)
	if err != nil {
		return "", fmt.Errorf("parse date: %w", err)
	}
	if res == nil || strings.TrimSpace(res.Text) == "" {
		return "", ErrNoDate
	}
	return strings.TrimSpace(res.Text), nil
}

// KeywordRecognizer matches a fixed list of calendar and relative-time
// keywords by substring.
type KeywordRecognizer struct {
	keywords []string
}

// NewKeywordRecognizer returns a recognizer over the given keywords.
func NewKeywordRecognizer(keywords []string) *KeywordRecognizer {
	return &KeywordRecognizer{keywords: lowerAll(keywords)}
}

// Recognize implements DateRecognizer.
func (k *KeywordRecognizer) Recognize(text string, _ time.Time) (string, error) {
	lower := strings.ToLower(text)
	for _, kw := range k.keywords {
		i := strings.Index(lower, kw)
		if i < 0 {
			continue
		}
		// Return the original casing when lowercasing kept byte offsets.
		if lowerKeepsOffsets(text) {
			return text[i : i+len(kw)], nil
		}
		return kw, nil
	}
	return "", ErrNoDate
}

// lowerKeepsOffsets reports whether every rune of s lowercases to a rune of
// the same encoded width, so offsets into strings.ToLower(s) are offsets
// into s.
func lowerKeepsOffsets(s string) bool {
	for i := 0; i < len(s); {
		r, w := utf8.DecodeRuneInString(s[i:])
		if utf8.RuneLen(unicode.ToLower(r)) != w {
			return false
		}
		i += w
	}
	return true
}
