package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docpress/internal/app"
	"github.com/dgallion1/docpress/internal/config"
	"github.com/dgallion1/docpress/internal/report"
)

// engineFlags override compression settings from the config file.
type engineFlags struct {
	strategy     string
	minWords     int
	maxWords     int
	overlapWords int
	docMaxLength int
	workers      int
}

func (f *engineFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.strategy, "strategy", "", "default strategy: extractive, abstractive or hybrid")
	fl.IntVar(&f.minWords, "min-words", 0, "minimum chunk size in words")
	fl.IntVar(&f.maxWords, "max-words", 0, "maximum chunk size in words")
	fl.IntVar(&f.overlapWords, "overlap-words", 0, "words carried between chunks")
	fl.IntVar(&f.docMaxLength, "doc-max-length", 0, "document summary word budget")
	fl.IntVar(&f.workers, "workers", 0, "parallel chunk summarizers")
}

// apply copies flags the user set onto cfg.
func (f *engineFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fl := cmd.Flags()
	if fl.Changed("strategy") {
		cfg.Compression.Strategy = f.strategy
	}
	if fl.Changed("min-words") {
		cfg.Compression.MinWords = f.minWords
	}
	if fl.Changed("max-words") {
		cfg.Compression.MaxWords = f.maxWords
	}
	if fl.Changed("overlap-words") {
		cfg.Compression.OverlapWords = f.overlapWords
	}
	if fl.Changed("doc-max-length") {
		cfg.Compression.DocMaxLength = f.docMaxLength
	}
	if fl.Changed("workers") {
		cfg.Compression.Workers = f.workers
	}
}

func newCompressCmd(opts *options) *cobra.Command {
	var (
		input  string
		outDir string
		ef     engineFlags
	)
	cmd := &cobra.Command{
		Use:   "compress",
		Short: "Compress one document into a hierarchical report",
		Long: `Compress a document and write report.json to the output directory.

When the document has critical facts they are also written to
critical_facts.json. A summary of the run is printed to stdout.

Examples:
  docpress compress -i contract.pdf
  docpress compress -i notes.md -o out --doc-max-length 150
  docpress compress -i handbook.docx --strategy hybrid -f json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			ef.apply(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			log := opts.logger(cmd.ErrOrStderr())
			claude, err := app.NewClaude(cfg, log)
			if err != nil {
				return err
			}
			if claude != nil {
				defer claude.Close()
			}
			engine, err := app.NewEngine(cfg, log, claude)
			if err != nil {
				return err
			}

			run, err := engine.CompressFile(cmd.Context(), input)
			if err != nil {
				return fmt.Errorf("compress %s: %w", input, err)
			}
			files, err := writeOutputs(outDir, run.Report)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), summarize(run.Report, files))
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "document to compress")
	cmd.Flags().StringVarP(&outDir, "output", "o", "outputs", "output directory")
	cmd.MarkFlagRequired("input")
	ef.register(cmd)
	return cmd
}

// runSummary is the printed result of one compression.
type runSummary struct {
	Document         string            `json:"document" yaml:"document"`
	Pages            int               `json:"pages" yaml:"pages"`
	Words            int               `json:"words" yaml:"words"`
	Chunks           int               `json:"chunks" yaml:"chunks"`
	Sections         int               `json:"sections" yaml:"sections"`
	SummaryWords     int               `json:"summary_words" yaml:"summary_words"`
	FinalRatio       float64           `json:"final_ratio" yaml:"final_ratio"`
	CriticalFacts    int               `json:"critical_facts" yaml:"critical_facts"`
	PreservationRate float64           `json:"critical_preservation_rate" yaml:"critical_preservation_rate"`
	InformationLoss  float64           `json:"information_loss_score" yaml:"information_loss_score"`
	Contradictions   int               `json:"contradiction_count" yaml:"contradiction_count"`
	Files            map[string]string `json:"files,omitempty" yaml:"files,omitempty"`
	Summary          string            `json:"summary" yaml:"summary"`
}

func summarize(r *report.Report, files map[string]string) runSummary {
	s := runSummary{
		Document:         r.DocumentName,
		Pages:            r.OriginalStats.Pages,
		Words:            r.OriginalStats.Words,
		FinalRatio:       r.FinalRatio(),
		CriticalFacts:    len(r.CriticalFacts),
		PreservationRate: r.QualityMetrics.CriticalPreservationRate,
		InformationLoss:  r.QualityMetrics.InformationLossScore,
		Contradictions:   r.QualityMetrics.ContradictionCount,
		Files:            files,
		Summary:          r.DocumentSummary(),
	}
	if l, ok := r.Level(report.LevelChunk); ok {
		s.Chunks = l.ItemCount
	}
	if l, ok := r.Level(report.LevelSection); ok {
		s.Sections = l.ItemCount
	}
	if l, ok := r.Level(report.LevelDocument); ok {
		s.SummaryWords = l.TotalWords
	}
	return s
}

// writeOutputs writes report.json, and critical_facts.json when there are
// facts, into dir. It returns the written paths keyed by kind.
func writeOutputs(dir string, r *report.Report) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	files := make(map[string]string)

	path := filepath.Join(dir, "report.json")
	if err := writeJSONFile(path, r); err != nil {
		return nil, err
	}
	files["json"] = path

	if len(r.CriticalFacts) > 0 {
		path := filepath.Join(dir, "critical_facts.json")
		if err := writeJSONFile(path, r.CriticalFacts); err != nil {
			return nil, err
		}
		files["critical_facts"] = path
	}
	return files, nil
}

func writeJSONFile(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
