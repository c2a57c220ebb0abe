package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anthropics/pampax/internal/cachelayer"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the C7 cache layer",
}

var cacheNamespace string

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear one or all cache namespaces",
	RunE:  runCacheClear,
}

var cacheWarmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Run the cache warm operation for a namespace at the current index version",
	Long: `Warm reads the repo's current index version and runs the cache's
warm operation for one namespace without assembling anything. It passes
no entries, so it writes nothing to the cache and leaves every existing
entry as it is; it fails only if the store or cache cannot be opened or
the index version cannot be read.`,
	RunE: runCacheWarm,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheWarmCmd)

	cacheClearCmd.Flags().StringVar(&cacheNamespace, "namespace", "", "namespace to clear: search, traversal, bundle-plan (default: all)")
	cacheWarmCmd.Flags().StringVar(&cacheNamespace, "namespace", "search", "namespace to warm: search, traversal, bundle-plan")
}

func namespaces() []cachelayer.Namespace {
	return []cachelayer.Namespace{cachelayer.NamespaceSearch, cachelayer.NamespaceTraversal, cachelayer.NamespaceBundlePlan}
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cache, err := openCache()
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer cache.Close()

	ctx := context.Background()
	targets := namespaces()
	if cacheNamespace != "" {
		targets = []cachelayer.Namespace{cachelayer.Namespace(cacheNamespace)}
	}
	for _, ns := range targets {
		if err := cache.Clear(ctx, ns); err != nil {
			return fmt.Errorf("clear namespace %s: %w", ns, err)
		}
		fmt.Printf("cleared namespace %s\n", ns)
	}
	return nil
}

func runCacheWarm(cmd *cobra.Command, args []string) error {
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

	ctx := context.Background()
	indexVersion, err := st.IndexVersion(ctx)
	if err != nil {
		return fmt.Errorf("read index version: %w", err)
	}

	ns := cachelayer.Namespace(cacheNamespace)
	if err := cache.Warm(ctx, ns, indexVersion, nil); err != nil {
		return fmt.Errorf("warm namespace %s: %w", ns, err)
	}
	fmt.Printf("warmed namespace %s at index version %s\n", ns, indexVersion)
	return nil
}
