// Package tokenizer turns raw text into normalised index terms. An Analyzer
// applies NFKC normalisation, lower-cases, splits on runs of characters that
// are neither letters nor digits, drops short tokens and stop words, and
// optionally stems. The same Analyzer must be used for documents and
// queries so that cache keys and postings agree.
package tokenizer

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Token is a normalised term and its position among the kept tokens.
type Token struct {
	Term     string
	Position int
}

// Options configures an Analyzer. A nil StopWords selects the built-in
// English list; an empty non-nil slice disables stop-word removal.
type Options struct {
	StopWords      []string
	Stemmer        string
	MinTokenLength int
}

// Analyzer is immutable after construction and safe for concurrent use.
type Analyzer struct {
	stopWords map[string]struct{}
	stemmer   Stemmer
	minLen    int
	signature string
}

// New builds an Analyzer from opts.
func New(opts Options) (*Analyzer, error) {
	stemmer, err := NewStemmer(opts.Stemmer)
	if err != nil {
		return nil, err
	}
	words := opts.StopWords
	if words == nil {
		words = DefaultStopWords
	}
	stop := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(norm.NFKC.String(w)))
		if w != "" {
			stop[w] = struct{}{}
		}
	}
	minLen := opts.MinTokenLength
	if minLen < 1 {
		minLen = 1
	}
	a := &Analyzer{stopWords: stop, stemmer: stemmer, minLen: minLen}
	a.signature = a.buildSignature()
	return a, nil
}

// MustNew is New for static options known to be valid.
func MustNew(opts Options) *Analyzer {
	a, err := New(opts)
	if err != nil {
		panic(err)
	}
	return a
}

// Tokenize returns the kept tokens of text in order.
func (a *Analyzer) Tokenize(text string) []Token {
	terms := a.Terms(text)
	tokens := make([]Token, len(terms))
	for i, t := range terms {
		tokens[i] = Token{Term: t, Position: i}
	}
	return tokens
}

// Terms returns the normalised terms of text. Empty input yields an empty,
// non-nil slice.
func (a *Analyzer) Terms(text string) []string {
	text = strings.ToLower(norm.NFKC.String(text))
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if runeCount(word) < a.minLen {
			continue
		}
		if _, stop := a.stopWords[word]; stop {
			continue
		}
		if word = a.stemmer.Stem(word); word == "" {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

// Signature is a stable description of every setting that affects output.
// It feeds the corpus fingerprint so a persisted snapshot built with a
// different analyzer is never reused.
func (a *Analyzer) Signature() string {
	return a.signature
}

func (a *Analyzer) buildSignature() string {
	words := make([]string, 0, len(a.stopWords))
	for w := range a.stopWords {
		words = append(words, w)
	}
	sort.Strings(words)
	var b strings.Builder
	b.WriteString("stemmer=")
	b.WriteString(a.stemmer.Name())
	b.WriteString(";min=")
	b.WriteString(strconv.Itoa(a.minLen))
	b.WriteString(";stop=")
	b.WriteString(strings.Join(words, ","))
	return b.String()
}

func runeCount(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

// LoadStopWords reads one stop word per line. Blank lines and lines starting
// with '#' are ignored.
func LoadStopWords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stop-word file: %w", err)
	}
	defer f.Close()
	var words []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading stop-word file: %w", err)
	}
	return words, nil
}

// DefaultStopWords is a short English function-word list.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "can",
	"do", "each", "for", "from", "had", "has", "have", "he", "if", "in",
	"is", "it", "its", "no", "not", "of", "on", "or", "so", "that",
	"the", "their", "they", "this", "to", "was", "were", "what", "when",
	"where", "which", "who", "will", "with",
}
