// Package events carries structured progress notifications out of the
// compression engine. The engine only emits; observers decide whether to
// log, count or record them.
package events

import (
	"log/slog"
	"time"
)

// Stage names one step of a compression run.
type Stage string

const (
	StageLoad      Stage = "load"
	StageChunk     Stage = "chunk"
	StageSummarize Stage = "summarize"
	StageSection   Stage = "section"
	StageDocument  Stage = "document"
	StageReport    Stage = "report"
)

// Kind says what happened within a stage.
type Kind string

const (
	KindStarted         Kind = "started"
	KindCompleted       Kind = "completed"
	KindChunkSummarized Kind = "chunk_summarized"
	KindFallback        Kind = "generator_fallback"
	KindTruncated       Kind = "truncated"
)

// Event is one notification. Fields that do not apply are zero.
type Event struct {
	Stage     Stage
	Kind      Kind
	Document  string
	Count     int // items produced by the stage
	Words     int // words produced by the stage
	ChunkID   int
	ChunkType string
	Strategy  string
	Duration  time.Duration
	Err       error
}

// Observer receives events. Implementations must be safe for concurrent
// use; chunk summaries may be reported from several goroutines.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Multi fans an event out to several observers in order.
type Multi []Observer

func (m Multi) Observe(e Event) {
	for _, o := range m {
		if o != nil {
			o.Observe(e)
		}
	}
}

// Nop discards events.
var Nop Observer = ObserverFunc(func(Event) {})

// LogObserver writes events to log. Per-chunk events go at debug level.
func LogObserver(log *slog.Logger) Observer {
	return ObserverFunc(func(e Event) {
		attrs := []any{"stage", string(e.Stage), "doc", e.Document}
		switch e.Kind {
		case KindStarted:
			log.Debug("stage started", attrs...)
		case KindCompleted:
			log.Info("stage completed", append(attrs, "count", e.Count, "words", e.Words, "duration_ms", e.Duration.Milliseconds())...)
		case KindChunkSummarized:
			log.Debug("chunk summarized", append(attrs, "chunk_id", e.ChunkID, "strategy", e.Strategy, "words", e.Words)...)
		case KindFallback:
			log.Warn("generator failed, using extractive", append(attrs, "chunk_id", e.ChunkID, "error", e.Err)...)
		case KindTruncated:
			log.Info("document summary truncated", append(attrs, "words", e.Words)...)
		}
	})
}
