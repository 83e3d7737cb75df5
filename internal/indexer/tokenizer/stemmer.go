package tokenizer

import (
	"fmt"
	"strings"

	"github.com/kljensen/snowball"

	apperrors "github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/errors"
)

// Stemmer reduces a lower-cased word to its index form.
type Stemmer interface {
	Name() string
	Stem(word string) string
}

// NewStemmer returns the stemmer registered under name: "none" (or ""),
// "snowball" or "light".
func NewStemmer(name string) (Stemmer, error) {
	switch name {
	case "", "none":
		return identity{}, nil
	case "snowball":
		return snowballEnglish{}, nil
	case "light":
		return light{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown stemmer %q", apperrors.ErrInvalidInput, name)
	}
}

type identity struct{}

func (identity) Name() string            { return "none" }
func (identity) Stem(word string) string { return word }

// snowballEnglish is the Porter2 English stemmer.
type snowballEnglish struct{}

func (snowballEnglish) Name() string { return "snowball" }

func (snowballEnglish) Stem(word string) string {
	stemmed, err := snowball.Stem(word, "english", true)
	if err != nil {
		return word
	}
	return stemmed
}

// light strips a handful of common English inflectional and derivational
// suffixes. It is cheaper and less aggressive than Porter2.
type light struct{}

var lightRules = []struct {
	suffix      string
	replacement string
	minLen      int
}{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"ying", "y", 2},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"ed", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

func (light) Name() string { return "light" }

func (light) Stem(word string) string {
	for _, rule := range lightRules {
		if strings.HasSuffix(word, rule.suffix) {
			stemmed := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(stemmed) >= rule.minLen {
				return stemmed
			}
		}
	}
	return word
}
