// lexctl is the operator CLI: corpus ingestion, index rebuilds, and
// interpretation-link extraction. Every command acts on the same stores the
// server reads; queries keep working against the previous generation while a
// reindex runs.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"statutelink/internal/config"
	"statutelink/pkg/ingest"
	"statutelink/pkg/models"
	"statutelink/pkg/search/dense"
	"statutelink/pkg/search/lexical"
	"statutelink/pkg/storage/archive"
	"statutelink/pkg/storage/postgres"
)

var version = "0.1.0"

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	rootCmd := &cobra.Command{
		Use:   "lexctl",
		Short: "StatuteLink corpus and index operations",
		Long: `lexctl manages the StatuteLink corpus: it ingests raw legal texts into
the hierarchical document store, rebuilds the lexical and dense index
generations, and extracts interpretation links from case paragraphs.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(reindexLexCmd())
	rootCmd.AddCommand(reindexDenseCmd())
	rootCmd.AddCommand(extractLinksCmd())
	rootCmd.AddCommand(populateLinksCmd())
	rootCmd.AddCommand(archiveCmd())
	rootCmd.AddCommand(statsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfigAndStore(ctx context.Context) (*config.Config, *postgres.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	store, err := postgres.New(ctx, &postgres.Config{
		URL:            cfg.Database.URL,
		MaxConnections: cfg.Database.MaxConnections,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		MigrationsPath: cfg.Database.MigrationsPath,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	return cfg, store, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, store, err := loadConfigAndStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.MigrateToLatest(); err != nil {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
}

// pgLoader adapts the Postgres store to the ingester's loader contract.
type pgLoader struct {
	store *postgres.Store
}

func (l *pgLoader) InsertBatch(ctx context.Context, docs []*models.Document, allowDuplicates bool) (int, int, []ingest.NodeError, error) {
	result, err := l.store.InsertDocuments(ctx, docs, allowDuplicates)
	if err != nil {
		return 0, 0, nil, err
	}
	skips := make([]ingest.NodeError, len(result.Skips))
	for i, s := range result.Skips {
		skips[i] = ingest.NodeError{ID: s.ID, Reason: s.Reason}
	}
	return result.Inserted, result.Skipped, skips, nil
}

func ingestCmd() *cobra.Command {
	var docType string
	var format string

	cmd := &cobra.Command{
		Use:   "ingest [paths...]",
		Short: "Parse raw legal texts into the document store",
		Long: `Parse one or more raw sources into the hierarchical document store.
Paths may be local files, directories, or s3://bucket/key objects in the
corpus archive. PDF sources are reduced to plain text before parsing.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, store, err := loadConfigAndStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			ingester := ingest.New(ingest.Config{
				AllowDuplicates: cfg.Ingest.AllowDuplicates,
				MaxRootChars:    cfg.Ingest.MaxRootChars,
			}, &pgLoader{store: store})

			totalInserted, totalSkipped := 0, 0
			for _, arg := range args {
				sources, err := resolveSources(ctx, cfg, arg, docType, format)
				if err != nil {
					return err
				}
				for _, source := range sources {
					stats, err := ingester.Ingest(ctx, source)
					if err != nil {
						log.Printf("[INGEST] %s failed: %v", source.Path, err)
						continue
					}
					totalInserted += stats.Inserted
					totalSkipped += stats.Skipped
					for _, e := range stats.Errors {
						log.Printf("[INGEST]   skipped %s: %s", e.ID, e.Reason)
					}
				}
			}

			fmt.Printf("ingest complete: %d inserted, %d skipped\n", totalInserted, totalSkipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&docType, "type", "", "declared document type: statute, case, or rule")
	cmd.Flags().StringVar(&format, "format", "", "source format: txt or pdf (default by extension)")
	return cmd
}

func resolveSources(ctx context.Context, cfg *config.Config, path, docType, format string) ([]*ingest.SourceDocument, error) {
	if _, key, ok := archive.ParseS3Path(path); ok {
		client, err := archive.New(ctx, &archive.Config{
			Endpoint:  cfg.Archive.Endpoint,
			Region:    cfg.Archive.Region,
			Bucket:    cfg.Archive.Bucket,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		body, err := client.Download(ctx, key)
		if err != nil {
			return nil, err
		}
		defer body.Close()
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, err
		}
		source, err := buildSource(path, data, docType, format)
		if err != nil {
			return nil, err
		}
		return []*ingest.SourceDocument{source}, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var paths []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			paths = append(paths, filepath.Join(path, entry.Name()))
		}
	} else {
		paths = []string{path}
	}

	var sources []*ingest.SourceDocument
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		source, err := buildSource(p, data, docType, format)
		if err != nil {
			log.Printf("[INGEST] %s skipped: %v", p, err)
			continue
		}
		sources = append(sources, source)
	}
	return sources, nil
}

func buildSource(path string, data []byte, docType, format string) (*ingest.SourceDocument, error) {
	if format == "" {
		if strings.EqualFold(filepath.Ext(path), ".pdf") {
			format = "pdf"
		} else {
			format = "txt"
		}
	}

	text := string(data)
	if format == "pdf" {
		extracted, err := extractPDFText(data)
		if err != nil {
			return nil, fmt.Errorf("pdf extraction failed: %w", err)
		}
		text = extracted
	}

	return &ingest.SourceDocument{
		Path:         path,
		RawText:      text,
		DeclaredType: models.DocType(docType),
		Format:       format,
	}, nil
}

func reindexLexCmd() *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "reindex-lex",
		Short: "Rebuild the lexical index generation and swap the alias",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, store, err := loadConfigAndStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			client, err := lexical.NewClient(&lexical.Config{
				Host:     cfg.OpenSearch.Host,
				Port:     cfg.OpenSearch.Port,
				Username: cfg.OpenSearch.Username,
				Password: cfg.OpenSearch.Password,
				UseSSL:   cfg.OpenSearch.UseSSL,
				Alias:    cfg.OpenSearch.Alias,
			})
			if err != nil {
				return err
			}

			units, err := store.AllUnits(ctx)
			if err != nil {
				return err
			}

			name, err := client.Reindex(ctx, units)
			if err != nil {
				return err
			}
			if err := client.PruneGenerations(ctx, keep); err != nil {
				log.Printf("[LEXICAL] prune failed (non-fatal): %v", err)
			}
			fmt.Printf("lexical index rebuilt: %d units in %s\n", len(units), name)
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 2, "generation indexes to retain")
	return cmd
}

func reindexDenseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex-dense",
		Short: "Rebuild the dense index generation and swap the pointer",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, store, err := loadConfigAndStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			embedder, err := dense.NewGeminiEmbedder(dense.GeminiConfig{
				Endpoint:  cfg.Embedding.Endpoint,
				APIKey:    cfg.Embedding.APIKey,
				Model:     cfg.Embedding.Model,
				Dimension: cfg.Embedding.Dimension,
				Timeout:   cfg.Embedding.Timeout,
				MaxChars:  cfg.Embedding.MaxChars,
			})
			if err != nil {
				return err
			}

			builder, err := dense.NewBuilder(cfg.Dense.Dir, embedder, cfg.Embedding.MaxChars)
			if err != nil {
				return err
			}

			units, err := store.AllUnits(ctx)
			if err != nil {
				return err
			}

			start := time.Now()
			for i, unit := range units {
				if err := builder.Add(ctx, unit); err != nil {
					return err
				}
				if (i+1)%100 == 0 {
					log.Printf("[DENSE] embedded %d/%d units", i+1, len(units))
				}
			}

			published, err := builder.Publish(cfg.Embedding.Model)
			if err != nil {
				return err
			}
			defer published.Close()

			fmt.Printf("dense index rebuilt: %d units, generation %s, took %s\n",
				len(units), published.Generation(), time.Since(start).Round(time.Second))
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print corpus statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, store, err := loadConfigAndStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Statistics(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("documents: %d (statutes %d, cases %d, rules %d)\n",
				stats.TotalDocuments, stats.Statutes, stats.Cases, stats.Rules)
			fmt.Printf("roots: %d, sections: %d, deeper nodes: %d\n",
				stats.Roots, stats.Sections, stats.Paragraphs)

			counts, err := store.CountByAuthority(ctx)
			if err != nil {
				return err
			}
			for authority, n := range counts {
				fmt.Printf("links %s: %d\n", authority, n)
			}
			return nil
		},
	}
}
