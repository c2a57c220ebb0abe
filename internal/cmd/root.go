// Package cmd implements the pampax CLI: thin cobra commands wrapping
// internal/assembler, internal/config, internal/store, and
// internal/render.
//
// Grounded on the teacher's internal/cmd/root.go: a single persistent
// flag set (format, density, config path, verbose) shared by every
// subcommand, and an Execute() that exits 1 on any cobra-level error.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anthropics/pampax/internal/cachelayer"
	"github.com/anthropics/pampax/internal/config"
	"github.com/anthropics/pampax/internal/embeddings"
	"github.com/anthropics/pampax/internal/render"
	"github.com/anthropics/pampax/internal/store"
)

var (
	flagRepo    string
	flagFormat  string
	flagDensity string
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           "pampax",
	Short:         "Code-retrieval and context-assembly engine",
	Long:          `pampax assembles task-relevant code context within a token budget for AI agents.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRepo, "repo", ".", "repository root")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", string(render.DefaultFormat), "output format: markdown, json")
	rootCmd.PersistentFlags().StringVar(&flagDensity, "density", string(render.DefaultDensity), "output density: sparse, medium, dense")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (overrides .pampax/config.yaml discovery)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "print diagnostic output to stderr")
}

// Execute runs the root command, exiting the process with status 1 on
// any error cobra itself surfaces (flag parsing, unknown subcommand).
// Subcommands that need a specific exit code call os.Exit directly
// before returning, following the teacher's guard.go idiom.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves the effective config.Config for a command
// invocation: an explicit --config path wins, otherwise config.Load
// walks up from --repo and falls back to config.DefaultConfig.
func loadConfig() (*config.Config, error) {
	if flagConfig != "" {
		return config.LoadFromPath(flagConfig)
	}
	return config.Load(flagRepo)
}

// openStore opens the Dolt-backed store rooted at --repo.
func openStore(cfg *config.Config) (store.Store, error) {
	return store.OpenDolt(flagRepo, cfg.Storage.EmbeddingDim)
}

// openCache opens the C7 cache database inside the .pampax config
// directory, creating the directory if it does not exist yet.
func openCache() (*cachelayer.Cache, error) {
	dir, err := config.EnsureConfigDir(flagRepo)
	if err != nil {
		return nil, err
	}
	return cachelayer.Open(dir)
}

// openEmbedder builds the vector-search embedder from environment
// configuration: the Gemini API backend when GEMINI_API_KEY is set and
// its client can be built, otherwise the local Ollama backend. It never
// fails the command; an unreachable backend surfaces later as a vector
// producer failure.
func openEmbedder() embeddings.Embedder {
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		emb, err := embeddings.NewGenAIEmbedder(context.Background(), apiKey, "")
		if err == nil {
			return emb
		}
		if flagVerbose {
			fmt.Fprintf(os.Stderr, "pampax: genai embedder unavailable: %v\n", err)
		}
	}
	return embeddings.NewOllamaEmbedder()
}

func parseFormat() (render.Format, error)   { return render.ParseFormat(flagFormat) }
func parseDensity() (render.Density, error) { return render.ParseDensity(flagDensity) }
