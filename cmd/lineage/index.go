package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/lineage/internal/graph"
)

// runIndex parses the project and stores its symbol graph under
// index.graphDir, replacing any earlier index.
func (a *app) runIndex(cmd *cobra.Command, args []string) error {
	root := a.project
	if len(args) == 1 {
		abs, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving %s: %w", args[0], err)
		}
		root = abs
	}
	langs, _ := cmd.Flags().GetStringSlice("lang")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	memory, _ := cmd.Flags().GetBool("memory")

	var (
		store graph.Store
		path  string
	)
	if memory || a.cfg.Index.GraphDir == "" {
		store = graph.NewMemStore()
	} else {
		path = filepath.Join(root, a.cfg.Index.GraphDir)
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("clearing %s: %w", path, err)
		}
		kz, err := graph.NewKuzuFileStore(path)
		if err != nil {
			return fmt.Errorf("open graph: %w", err)
		}
		store = kz
	}
	defer store.Close()

	stats, err := graph.NewIndexer(store, graph.NewTreeSitterParser(), a.indexOptions(langs, exclude)...).Index(cmd.Context(), root)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Indexed %d files: %d symbols, %d routines, %d edges\n",
		stats.FileCount, stats.SymbolCount, stats.RoutineCount, stats.EdgeCount)
	if path != "" {
		fmt.Fprintf(out, "Graph written to %s\n", dotRelative(root, path))
	}
	return nil
}
