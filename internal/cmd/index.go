package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/anthropics/pampax/internal/adapter"
	"github.com/anthropics/pampax/internal/embeddings"
	"github.com/anthropics/pampax/internal/store"
)

// indexStats mirrors the teacher's scanStats counters, trimmed to what
// a single-adapter ingest run can report.
type indexStats struct {
	filesScanned int
	filesSkipped int
	filesErrored int
	spans        int
	edges        int
}

var indexNoEmbed bool

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Parse source files under path and persist their spans and edges",
	Long: `Index walks path (default: --repo), hands each file an Adapter
supports to that adapter's Parse, and upserts the resulting spans and
edges into the store. It is the only shipped path that populates a
fresh store; pampax assemble and pampax cache warm both assume an
index has already been run.

A file an adapter fails to parse is recorded and skipped; one bad file
never aborts the run, matching the Adapter contract's partial-result
posture.`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVar(&indexNoEmbed, "no-embed", false, "skip embedding spans for vector search")
}

func runIndex(cmd *cobra.Command, args []string) error {
	scanPath := flagRepo
	if len(args) > 0 {
		scanPath = args[0]
	}
	absPath, err := filepath.Abs(scanPath)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	doltStore, ok := st.(*store.DoltStore)
	if !ok {
		return fmt.Errorf("index requires a dolt-backed store, got %T", st)
	}

	registry := adapter.NewRegistry(adapter.NewGoAdapter())

	var embedder embeddings.Embedder
	if !indexNoEmbed {
		embedder = openEmbedder()
	}

	files, err := collectFiles(absPath, cfg.Scan.Exclude, registry)
	if err != nil {
		return fmt.Errorf("walk %s: %w", absPath, err)
	}

	ctx := context.Background()

	stats := &indexStats{}
	start := time.Now()

	byAdapter := make(map[adapter.Adapter][]adapter.FileInput)
	for _, f := range files {
		a := registry.For(f.Path)
		if a == nil {
			stats.filesSkipped++
			continue
		}
		byAdapter[a] = append(byAdapter[a], f)
	}

	for a, batch := range byAdapter {
		result, parseErr := a.Parse(ctx, batch, func(ev adapter.ProgressEvent) {
			if ev.Err != nil {
				stats.filesErrored++
				if flagVerbose {
					fmt.Fprintf(os.Stderr, "pampax index: %s: %v\n", ev.Path, ev.Err)
				}
				return
			}
			stats.filesScanned++
		})
		if parseErr != nil && flagVerbose {
			fmt.Fprintf(os.Stderr, "pampax index: adapter %s: %v\n", a.ID(), parseErr)
		}

		for _, sp := range result.Spans {
			if err := doltStore.UpsertSpan(ctx, sp); err != nil {
				return fmt.Errorf("upsert span %s: %w", sp.ID, err)
			}
			stats.spans++
			if embedder != nil {
				text := embeddings.PrepareSpanContent(string(sp.Kind), sp.Name, sp.Signature, sp.Doc)
				emb, embErr := embedder.Embed(ctx, text)
				if embErr != nil {
					if flagVerbose {
						fmt.Fprintf(os.Stderr, "pampax index: embed %s: %v\n", sp.ID, embErr)
					}
					continue
				}
				if err := doltStore.UpsertEmbedding(ctx, sp.ID, emb); err != nil {
					return fmt.Errorf("upsert embedding %s: %w", sp.ID, err)
				}
			}
		}
		for _, e := range result.Edges {
			if err := doltStore.UpsertEdge(ctx, e); err != nil {
				return fmt.Errorf("upsert edge %s: %w", e.Key(), err)
			}
			stats.edges++
		}
	}

	fmt.Printf("indexed %d files (%d skipped, %d errored) into %d spans, %d edges in %s\n",
		stats.filesScanned, stats.filesSkipped, stats.filesErrored, stats.spans, stats.edges, time.Since(start).Round(time.Millisecond))
	return nil
}

// collectFiles walks root, reading every file at least one registered
// adapter supports and skipping exclude-matched directories. Grounded
// on the teacher's scan.go walk, minus its multi-language auto-exclude
// detection (out of scope for the reference Go adapter).
func collectFiles(root string, excludes []string, registry *adapter.Registry) ([]adapter.FileInput, error) {
	repo := filepath.Base(root)
	var files []adapter.FileInput

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if matchesAny(rel, excludes) || rel == ".git" || rel == ".pampax" {
				return filepath.SkipDir
			}
			return nil
		}
		if matchesAny(rel, excludes) {
			return nil
		}
		if registry.For(rel) == nil {
			return nil
		}
		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		files = append(files, adapter.FileInput{Repo: repo, Path: rel, Content: content})
		return nil
	})
	return files, err
}

func matchesAny(rel string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(p, filepath.Base(rel)); ok {
			return true
		}
		if strings.HasPrefix(rel, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}
