package pathstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dgallion1/docpress/internal/report"
)

const (
	rootPrefix = "compression"
	sourceTag  = "docpress:"
)

// Exporter writes a compression report as a node tree:
//
//	compression/{doc_id}/meta
//	compression/{doc_id}/document
//	compression/{doc_id}/sections/{section_id}
//	compression/{doc_id}/chunks/{chunk_id}
//	compression/{doc_id}/facts/{n}
//
// Chunks link to their section and to their parent header chunk, sections
// to the document, facts to their chunk.
type Exporter struct {
	client *Client
}

func NewExporter(c *Client) *Exporter {
	return &Exporter{client: c}
}

// Prefix is the key prefix for one document.
func Prefix(docID string) string {
	return rootPrefix + "/" + docID
}

// ExportResult counts what was written.
type ExportResult struct {
	Nodes int `json:"nodes"`
	Links int `json:"links"`
}

// Export writes every level of r under the document's prefix. It stops at
// the first failed write.
func (e *Exporter) Export(ctx context.Context, docID string, r *report.Report) (ExportResult, error) {
	var res ExportResult
	prefix := Prefix(docID)
	src := sourceTag + docID

	put := func(key string, value any, salience float64) error {
		if err := e.client.PutNode(ctx, key, NodeRequest{
			Value:      value,
			MemoryType: "semantic",
			Salience:   salience,
			Source:     src,
		}); err != nil {
			return err
		}
		res.Nodes++
		return nil
	}
	link := func(from, to, summary string) error {
		if err := e.client.PutLink(ctx, LinkRequest{From: from, To: to, Weight: 1, Summary: summary}); err != nil {
			return err
		}
		res.Links++
		return nil
	}

	if err := put(prefix+"/meta", map[string]any{
		"document_name":    r.DocumentName,
		"compression_date": r.CompressionDate.Format(time.RFC3339),
		"original_stats":   r.OriginalStats,
		"quality_metrics":  r.QualityMetrics,
		"decisions":        r.Decisions,
	}, 0.5); err != nil {
		return res, err
	}

	docKey := prefix + "/document"
	if l, ok := r.Level(report.LevelDocument); ok && len(l.Items) > 0 {
		it := l.Items[0]
		if err := put(docKey, itemValue(it), 0.9); err != nil {
			return res, err
		}
	}

	sectionKeys := make(map[string]string)
	if l, ok := r.Level(report.LevelSection); ok {
		for _, it := range l.Items {
			key := prefix + "/sections/" + it.SectionID
			if err := put(key, itemValue(it), 0.7); err != nil {
				return res, err
			}
			if err := link(key, docKey, "section of document"); err != nil {
				return res, err
			}
			sectionKeys[it.SectionID] = key
		}
	}

	chunkKeys := make(map[int]string)
	if l, ok := r.Level(report.LevelChunk); ok {
		for _, it := range l.Items {
			if it.ChunkID == nil {
				continue
			}
			key := prefix + "/chunks/" + strconv.Itoa(*it.ChunkID)
			if err := put(key, itemValue(it), 0.5); err != nil {
				return res, err
			}
			chunkKeys[*it.ChunkID] = key
			if parent, ok := sectionKeys[it.SectionID]; ok {
				if err := link(key, parent, "chunk of section "+it.SectionID); err != nil {
					return res, err
				}
			}
			if it.ParentChunkID != nil {
				if header, ok := chunkKeys[*it.ParentChunkID]; ok {
					if err := link(key, header, "chunk under header"); err != nil {
						return res, err
					}
				}
			}
		}
	}

	for i, f := range r.CriticalFacts {
		key := fmt.Sprintf("%s/facts/%d", prefix, i)
		if err := put(key, f, 1.0); err != nil {
			return res, err
		}
		if parent, ok := chunkKeys[f.ChunkID]; ok {
			if err := link(key, parent, "critical fact from chunk"); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

// Exported reports whether a document's meta node exists.
func (e *Exporter) Exported(ctx context.Context, docID string) (bool, error) {
	n, err := e.client.GetNode(ctx, Prefix(docID)+"/meta")
	if err != nil {
		return false, err
	}
	return n != nil, nil
}

// Replace exports r after removing any tree left by an earlier run, so
// chunks that no longer exist do not linger.
func (e *Exporter) Replace(ctx context.Context, docID string, r *report.Report) (ExportResult, error) {
	exported, err := e.Exported(ctx, docID)
	if err != nil {
		return ExportResult{}, err
	}
	if exported {
		if err := e.Remove(ctx, docID); err != nil {
			return ExportResult{}, fmt.Errorf("remove previous export: %w", err)
		}
	}
	return e.Export(ctx, docID, r)
}

// Remove deletes everything under the document's prefix.
func (e *Exporter) Remove(ctx context.Context, docID string) error {
	return e.client.DeleteNode(ctx, Prefix(docID), true)
}

func itemValue(it report.Item) map[string]any {
	v := map[string]any{
		"summary":        it.Summary,
		"confidence":     it.Confidence,
		"explainability": it.Explainability,
	}
	if it.SectionID != "" {
		v["section_id"] = it.SectionID
	}
	if it.PageNumber != nil {
		v["page_number"] = *it.PageNumber
	}
	if it.SourceRange != nil {
		v["source_range"] = *it.SourceRange
	}
	return v
}
