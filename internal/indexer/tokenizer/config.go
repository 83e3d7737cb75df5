package tokenizer

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/config"
)

// FromConfig builds the Analyzer described by cfg. Words from
// StopWordsFile are added to StopWords, or to the built-in list when
// StopWords is empty. DisableStopWords turns removal off and ignores both.
func FromConfig(cfg config.AnalyzerConfig) (*Analyzer, error) {
	var stop []string
	switch {
	case cfg.DisableStopWords:
		stop = []string{}
	case len(cfg.StopWords) > 0:
		stop = append(stop, cfg.StopWords...)
	}
	if cfg.StopWordsFile != "" && !cfg.DisableStopWords {
		extra, err := LoadStopWords(cfg.StopWordsFile)
		if err != nil {
			return nil, err
		}
		if stop == nil {
			stop = append(stop, DefaultStopWords...)
		}
		stop = append(stop, extra...)
	}
	a, err := New(Options{StopWords: stop, Stemmer: cfg.Stemmer, MinTokenLength: cfg.MinTokenLength})
	if err != nil {
		return nil, fmt.Errorf("building analyzer: %w", err)
	}
	return a, nil
}
