package ingest

import (
	"context"
	"fmt"
	"log"
	"sort"

	"statutelink/pkg/errs"
	"statutelink/pkg/models"
)

// Loader persists a parsed batch. The Postgres store implements it; tests
// substitute an in-memory recorder.
type Loader interface {
	InsertBatch(ctx context.Context, docs []*models.Document, allowDuplicates bool) (inserted, skipped int, skips []NodeError, err error)
}

// Config controls ingestion behaviour.
type Config struct {
	AllowDuplicates bool
	MaxRootChars    int
}

// Ingester routes sources to type-specific parsers, validates the resulting
// tree slice, and hands it to the loader in parent-first order.
type Ingester struct {
	cfg     Config
	parsers []Parser
	loader  Loader
}

// Stats summarises one ingestion run.
type Stats struct {
	Sources   int         `json:"sources"`
	Parsed    int         `json:"parsed"`
	Inserted  int         `json:"inserted"`
	Skipped   int         `json:"skipped"`
	Errors    []NodeError `json:"errors,omitempty"`
}

// New builds an ingester with the standard parser set.
func New(cfg Config, loader Loader) *Ingester {
	return &Ingester{
		cfg:    cfg,
		loader: loader,
		parsers: []Parser{
			&StatuteParser{MaxRootChars: cfg.MaxRootChars},
			&CaseParser{MaxRootChars: cfg.MaxRootChars},
			&RulesParser{MaxRootChars: cfg.MaxRootChars},
		},
	}
}

// Parse turns one source into its document list without persisting anything.
// The list is ordered so every parent precedes its children; invalid nodes
// are dropped into the skip records, and the whole-tree invariants of the
// document model are enforced before anything is returned.
func (in *Ingester) Parse(source *SourceDocument) (*ParseResult, error) {
	parser := in.parserFor(source)
	if parser == nil {
		return nil, errs.Ef(errs.KindParse, "no parser supports source %s (declared type %q)", source.Path, source.DeclaredType)
	}

	result, err := parser.Parse(source)
	if err != nil {
		return nil, errs.E(errs.KindParse, err)
	}

	return in.validateTree(result), nil
}

// Ingest parses then loads one source. Per-node failures are recorded, never
// raised; the root plus valid descendants still land.
func (in *Ingester) Ingest(ctx context.Context, source *SourceDocument) (*Stats, error) {
	result, err := in.Parse(source)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Sources: 1, Parsed: len(result.Documents), Errors: result.Skipped}

	inserted, skipped, skips, err := in.loader.InsertBatch(ctx, result.Documents, in.cfg.AllowDuplicates)
	if err != nil {
		return nil, err
	}
	stats.Inserted = inserted
	stats.Skipped = skipped + len(result.Skipped)
	stats.Errors = append(stats.Errors, skips...)

	log.Printf("[INGEST] %s: parsed=%d inserted=%d skipped=%d", source.Path, stats.Parsed, stats.Inserted, stats.Skipped)
	return stats, nil
}

func (in *Ingester) parserFor(source *SourceDocument) Parser {
	for _, p := range in.parsers {
		if p.Supports(source) {
			return p
		}
	}
	return nil
}

// validateTree drops nodes that violate the document invariants or whose
// parent in the batch sits at the wrong level, then re-sorts into ascending
// level order so batched inserts keep referential integrity. Nodes whose
// parent is absent from the batch are kept; checking those against the store
// is the loader's job.
func (in *Ingester) validateTree(result *ParseResult) *ParseResult {
	out := &ParseResult{Skipped: result.Skipped}

	ids := make(map[string]int, len(result.Documents))
	roots := 0
	for _, doc := range result.Documents {
		if doc.Level == 0 {
			roots++
		}
	}
	if roots > 1 {
		// One root per source; keep the first, drop the rest.
		seenRoot := false
		kept := result.Documents[:0]
		for _, doc := range result.Documents {
			if doc.Level == 0 {
				if seenRoot {
					out.Skipped = append(out.Skipped, NodeError{ID: doc.ID, Reason: "extra root in source"})
					continue
				}
				seenRoot = true
			}
			kept = append(kept, doc)
		}
		result.Documents = kept
	}

	for _, doc := range result.Documents {
		if err := doc.Validate(); err != nil {
			out.Skipped = append(out.Skipped, NodeError{ID: doc.ID, Reason: err.Error()})
			continue
		}
		if doc.ParentID != "" {
			parentLevel, ok := ids[doc.ParentID]
			if ok && parentLevel != doc.Level-1 {
				out.Skipped = append(out.Skipped, NodeError{
					ID:     doc.ID,
					Reason: fmt.Sprintf("parent %s at level %d, expected %d", doc.ParentID, parentLevel, doc.Level-1),
				})
				continue
			}
		}
		ids[doc.ID] = doc.Level
		out.Documents = append(out.Documents, doc)
	}

	sort.SliceStable(out.Documents, func(i, j int) bool {
		return out.Documents[i].Level < out.Documents[j].Level
	})

	return out
}
