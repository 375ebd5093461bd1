package summarizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dgallion1/docpress/internal/chunker"
	"github.com/dgallion1/docpress/internal/textutil"
)

// StrategyName is the stable identifier of a summarization strategy.
type StrategyName string

const (
	NameExtractive  StrategyName = "extractive"
	NameAbstractive StrategyName = "abstractive"
	NameHybrid      StrategyName = "hybrid"
	NameCritical    StrategyName = "critical"
)

// ParseStrategy validates a configured strategy name.
func ParseStrategy(s string) (StrategyName, error) {
	switch n := StrategyName(s); n {
	case NameExtractive, NameAbstractive, NameHybrid, NameCritical:
		return n, nil
	case "":
		return NameExtractive, nil
	}
	return "", fmt.Errorf("unknown strategy %q (want extractive, abstractive, hybrid or critical)", s)
}

// Generator produces free-form summaries, typically from a language model.
type Generator interface {
	Generate(ctx context.Context, text string, maxWords int) (string, error)
}

// ErrNoGenerator is reported when an abstractive strategy runs with no
// generator configured.
var ErrNoGenerator = errors.New("no generator configured")

// ErrEmptyGeneration is reported when the generator returns only whitespace.
var ErrEmptyGeneration = errors.New("generator returned empty output")

// Strategy is one summarization behavior. The set is closed: only the types
// in this package implement it.
type Strategy interface {
	Name() StrategyName
	apply(ctx context.Context, r *run) string
}

// run is the per-chunk state a strategy works against.
type run struct {
	s        *Summarizer
	text     string
	words    int
	critical []string
	used     StrategyName
	fallback error
}

func (r *run) extract(ratio float64) string {
	return r.s.engine.Summarize(r.text, ratio)
}

func (r *run) generate(ctx context.Context, input string) (string, error) {
	if r.s.gen == nil {
		return "", ErrNoGenerator
	}
	maxWords := max(1, int(math.Round(defaultRatio*float64(r.words))))
	out, err := r.s.gen.Generate(ctx, input, maxWords)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyGeneration
	}
	return strings.TrimSpace(out), nil
}

// Extractive keeps the highest-scoring sentences at a fixed ratio.
type Extractive struct{ Ratio float64 }

func (Extractive) Name() StrategyName { return NameExtractive }

func (e Extractive) apply(_ context.Context, r *run) string {
	r.used = NameExtractive
	return r.extract(e.Ratio)
}

// CriticalPreserving extracts at a looser ratio and re-injects critical
// snippets the extraction dropped.
type CriticalPreserving struct{}

func (CriticalPreserving) Name() StrategyName { return NameCritical }

func (CriticalPreserving) apply(_ context.Context, r *run) string {
	r.used = NameCritical
	summary := r.extract(criticalRatio)
	for i, snip := range r.critical {
		if i == maxInjectedSnippets {
			break
		}
		if len(snip) > 10 && !strings.Contains(summary, snip) {
			summary += " " + snip
		}
	}
	if float64(textutil.WordCount(summary)) > criticalCeiling*float64(r.words) {
		summary = r.extract(criticalRetryRatio)
	}
	return summary
}

// Abstractive asks the generator for a summary of the whole chunk.
type Abstractive struct{}

func (Abstractive) Name() StrategyName { return NameAbstractive }

func (Abstractive) apply(ctx context.Context, r *run) string {
	out, err := r.generate(ctx, r.text)
	if err != nil {
		return r.fallbackTo(err)
	}
	r.used = NameAbstractive
	return out
}

// Hybrid pre-selects sentences extractively, then has the generator
// condense the selection.
type Hybrid struct{}

func (Hybrid) Name() StrategyName { return NameHybrid }

func (Hybrid) apply(ctx context.Context, r *run) string {
	pre := r.extract(hybridPreRatio)
	out, err := r.generate(ctx, pre)
	if err != nil {
		return r.fallbackTo(err)
	}
	r.used = NameHybrid
	return out
}

func (r *run) fallbackTo(err error) string {
	r.fallback = err
	r.used = NameExtractive
	return r.extract(defaultRatio)
}

// Decision is the outcome of strategy selection for one chunk.
type Decision struct {
	Strategy    Strategy
	Reason      string
	PassThrough bool
}

// Select picks the strategy for c. Chunk properties take precedence over
// the configured default.
func Select(c chunker.Chunk, def StrategyName) Decision {
	words := textutil.WordCount(c.Text)
	switch {
	case words < passThroughWords:
		return Decision{Strategy: Extractive{Ratio: 1}, Reason: "Short text - kept verbatim", PassThrough: true}
	case words < shortTextWords:
		return Decision{Strategy: Extractive{Ratio: defaultRatio}, Reason: "Short text - using extractive to prevent expansion"}
	case c.Type == chunker.Critical || c.ContainsExceptions:
		return Decision{Strategy: CriticalPreserving{}, Reason: "Critical content detected - using preservation mode"}
	}
	switch def {
	case NameCritical:
		return Decision{Strategy: CriticalPreserving{}, Reason: "Configured critical-preserving strategy"}
	case NameAbstractive:
		return Decision{Strategy: Abstractive{}, Reason: "Using abstractive generation for narrative content"}
	case NameHybrid:
		return Decision{Strategy: Hybrid{}, Reason: "Hybrid: extractive pre-selection refined by abstractive generation"}
	}
	return Decision{Strategy: Extractive{Ratio: defaultRatio}, Reason: "Using extractive summarization for reliable compression"}
}
