// Package extractive implements frequency-weighted sentence extraction.
package extractive

import (
	"math"
	"sort"
	"strings"

	"github.com/dgallion1/docpress/internal/patterns"
	"github.com/dgallion1/docpress/internal/textutil"
)

const (
	// salienceBoost multiplies the score of a sentence that matches any
	// salience pattern.
	salienceBoost = 3
	// fallbackShare is the fraction of top-ranked sentences kept when the
	// budgeted selection does not shorten the text.
	fallbackShare = 0.25
)

// Engine selects a subset of original sentences. It holds no state and is
// safe for concurrent use.
type Engine struct{}

// New returns an extractive engine.
func New() *Engine { return &Engine{} }

type sentence struct {
	index int
	text  string
	words int
	score int
}

// Summarize returns roughly ratio of text's words as whole sentences in
// their original order. The result never has more words than text.
func (e *Engine) Summarize(text string, ratio float64) string {
	raw := textutil.Sentences(text)
	if len(raw) <= 3 {
		return text
	}

	totalWords := textutil.WordCount(text)
	targetWords := int(math.Round(ratio * float64(totalWords)))
	targetSentences := max(1, int(math.Round(ratio*float64(len(raw)))))

	ranked := score(text, raw)

	var selected []sentence
	used := 0
	for _, s := range ranked {
		if len(selected) >= targetSentences {
			break
		}
		if used+s.words <= targetWords {
			selected = append(selected, s)
			used += s.words
		}
	}

	summary := join(selected)
	if len(selected) == 0 || textutil.WordCount(summary) >= totalWords {
		n := max(1, int(math.Round(fallbackShare*float64(len(raw)))))
		summary = join(ranked[:n])
	}
	return summary
}

// score ranks sentences by summed corpus word frequency, highest first.
// Ties keep original order.
func score(text string, raw []string) []sentence {
	freq := make(map[string]int)
	for _, w := range textutil.Tokens(text) {
		freq[w]++
	}

	out := make([]sentence, len(raw))
	for i, s := range raw {
		sum := 0
		for _, w := range textutil.Tokens(s) {
			sum += freq[w]
		}
		if patterns.HasSalience(s) {
			sum *= salienceBoost
		}
		out[i] = sentence{index: i, text: strings.TrimSpace(s), words: textutil.WordCount(s), score: sum}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].score > out[b].score })
	return out
}

func join(sel []sentence) string {
	ordered := make([]sentence, len(sel))
	copy(ordered, sel)
	sort.Slice(ordered, func(a, b int) bool { return ordered[a].index < ordered[b].index })
	parts := make([]string, len(ordered))
	for i, s := range ordered {
		parts[i] = s.text
	}
	return strings.Join(parts, " ")
}
