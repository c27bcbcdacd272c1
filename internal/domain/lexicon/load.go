package lexicon

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidLexicon is returned for unreadable or out of range tables.
var ErrInvalidLexicon = errors.New("invalid lexicon")

// LoadFile reads a lexicon override file. See Load.
func LoadFile(path string) (Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return Lexicon{}, fmt.Errorf("open lexicon %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// Load decodes YAML on top of Default: tables and weights present in the
// document replace the built-in ones, absent keys keep their defaults.
func Load(r io.Reader) (Lexicon, error) {
	l := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&l); err != nil && !errors.Is(err, io.EOF) {
		return Lexicon{}, fmt.Errorf("%w: %w", ErrInvalidLexicon, err)
	}
	if err := validator.New().Struct(l); err != nil {
		return Lexicon{}, fmt.Errorf("%w: %w", ErrInvalidLexicon, err)
	}
	return l, nil
}
