package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anthropics/pampax/internal/assembler"
	"github.com/anthropics/pampax/internal/policy"
	"github.com/anthropics/pampax/internal/render"
)

var (
	assembleBudget     int
	assembleLimit      int
	assembleGraphDepth int
	assembleSession    string
	assembleExplain    bool
	assembleMonorepo   bool
)

var assembleCmd = &cobra.Command{
	Use:   "assemble <query>",
	Short: "Assemble task-relevant context within a token budget",
	Long: `Assemble runs a query through the full retrieval pipeline - intent
classification, policy selection, lexical/vector/symbol/memory search,
reciprocal-rank fusion, graph expansion, and token-budget packing - and
renders the resulting bundle.

Examples:
  pampax assemble "where is the retry logic for webhook delivery"
  pampax assemble --budget 8000 --graph-depth 3 "explain the billing module"
  pampax assemble --format json --explain "show me the app.yaml config defaults"`,
	Args: cobra.ExactArgs(1),
	RunE: runAssemble,
}

func init() {
	rootCmd.AddCommand(assembleCmd)

	assembleCmd.Flags().IntVar(&assembleBudget, "budget", 0, "token budget (default: config budget.default_max_tokens)")
	assembleCmd.Flags().IntVar(&assembleLimit, "limit", 20, "maximum seed results per retrieval producer")
	assembleCmd.Flags().IntVar(&assembleGraphDepth, "graph-depth", 0, "max hops from seed spans (default: config budget.default_hops)")
	assembleCmd.Flags().StringVar(&assembleSession, "session", "", "session id, for memory recall and the per-session assembly latch")
	assembleCmd.Flags().BoolVar(&assembleExplain, "explain", false, "print the stopping-reason summary to stderr, even with --format json")
	assembleCmd.Flags().BoolVar(&assembleMonorepo, "monorepo", false, "hint the policy selector that this repo is a monorepo")
}

func runAssemble(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(args[0])

	format, err := parseFormat()
	if err != nil {
		return err
	}
	density, err := parseDensity()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	cache, err := openCache()
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer cache.Close()

	budget := assembleBudget
	if budget <= 0 {
		budget = cfg.Budget.DefaultMaxTokens
	}
	graphDepth := assembleGraphDepth
	if graphDepth <= 0 {
		graphDepth = cfg.Budget.DefaultHops
	}

	a := assembler.New(assembler.Deps{
		Store:    st,
		Cache:    cache,
		Embedder: openEmbedder(),
		Config:   cfg,
		Hints:    policy.RepoHints{Monorepo: assembleMonorepo},
	})

	req := assembler.Request{
		Query:      query,
		Budget:     budget,
		Limit:      assembleLimit,
		GraphDepth: graphDepth,
		SessionID:  assembleSession,
	}

	bundle, assembleErr := a.Assemble(context.Background(), req)
	exitCode := assembler.ExitCode(assembleErr)

	if assembleErr != nil && bundle == nil {
		fmt.Fprintln(os.Stderr, assembleErr)
		os.Exit(exitCode)
	}

	if assembleExplain {
		for _, sr := range bundle.StoppingReasons {
			fmt.Fprintf(os.Stderr, "stop: %s (%s, phase=%s): %s\n", sr.Title, sr.Severity, sr.Phase, sr.Explanation)
		}
	}

	if err := render.Render(os.Stdout, bundle, format, density); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	os.Exit(exitCode)
	return nil
}
