package detect

import (
	"fmt"
	"strings"
	"sync"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// SentenceSplitter splits text into sentences.
type SentenceSplitter interface {
	Split(text string) ([]string, error)
}

// PunktSplitter segments English text with a trained punkt model, so
// abbreviations like "e.g." or "Dr." do not end a sentence.
type PunktSplitter struct {
	mu        sync.Mutex
	tokenizer *sentences.DefaultSentenceTokenizer
}

// NewPunktSplitter loads the bundled English punkt model.
func NewPunktSplitter() (*PunktSplitter, error) {
	t, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load english sentence model: %w", err)
	}
	return &PunktSplitter{tokenizer: t}, nil
}

// Split implements SentenceSplitter.
func (p *PunktSplitter) Split(text string) ([]string, error) {
	p.mu.Lock()
	sents := p.tokenizer.Tokenize(text)
	p.mu.Unlock()

	out := make([]string, 0, len(sents))
	for _, s := range sents {
		if t := strings.TrimSpace(s.Text); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

// PeriodSplitter splits on the first period only.
type PeriodSplitter struct{}

// Split implements SentenceSplitter.
func (PeriodSplitter) Split(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	i := strings.Index(text, ".")
	if i < 0 {
		return []string{text}, nil
	}
	first := strings.TrimSpace(text[:i+1])
	rest := strings.TrimSpace(text[i+1:])
	if rest == "" {
		return []string{first}, nil
	}
	return []string{first, rest}, nil
}

var (
	punktOnce sync.Once
	punkt     *PunktSplitter
	punktErr  error
)

// sharedPunkt loads the punkt model once per process.
func sharedPunkt() (*PunktSplitter, error) {
	punktOnce.Do(func() {
		punkt, punktErr = NewPunktSplitter()
	})
	return punkt, punktErr
}
