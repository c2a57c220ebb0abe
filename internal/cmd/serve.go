package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/anthropics/pampax/internal/assembler"
	"github.com/anthropics/pampax/internal/mcpsrv"
)

var serveTimeout string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server for AI agent integration",
	Long: `Start an MCP (Model Context Protocol) server exposing pampax_assemble,
so an agent can request a bundle directly over stdio instead of
spawning "pampax assemble" per query.

Examples:
  pampax serve                     # stdio transport, no inactivity timeout
  pampax serve --timeout 30m       # exit after 30 minutes idle`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveTimeout, "timeout", "0", "inactivity timeout (0 for no timeout)")
}

func runServe(cmd *cobra.Command, args []string) error {
	timeout, err := time.ParseDuration(serveTimeout)
	if err != nil && serveTimeout != "0" {
		return fmt.Errorf("invalid timeout: %w", err)
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

	a := assembler.New(assembler.Deps{
		Store:    st,
		Cache:    cache,
		Embedder: openEmbedder(),
		Config:   cfg,
	})

	srv := mcpsrv.New(a, mcpsrv.Config{Timeout: timeout})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "pampax serve: shutting down")
		os.Exit(0)
	}()

	fmt.Fprintln(os.Stderr, "pampax serve: starting MCP server (stdio)")
	if timeout > 0 {
		fmt.Fprintf(os.Stderr, "pampax serve: timeout: %v\n", timeout)
	}

	return srv.ServeStdio()
}
