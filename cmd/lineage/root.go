package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand(version string) *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "lineage",
		Short: "Derive data lineage reports and diagrams from source code",
		Long: `Lineage collects the source of a routine and of everything it calls,
asks a language model for a data lineage report and repairs the Mermaid
diagram in its answer so it renders.

Without a reachable model it renders the call graph instead.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&a.project, "project", "C", ".", "Project root holding the sources and lineage.yml")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Log debug output to stderr")
	pf.BoolVar(&a.offline, "offline", false, "Never call the model")
	pf.BoolVar(&a.goTypes, "gotypes", false, "Resolve Go code with the type checker instead of the tree-sitter index")
	pf.IntVar(&a.maxDepth, "max-depth", 0, "Bound on call depth below the root (default: lineage.yml or unlimited)")

	// Index Commands
	indexCmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a project into a persisted symbol graph",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.runIndex,
	}
	indexCmd.Flags().StringSliceP("lang", "l", nil, "Languages to index (default: lineage.yml or all)")
	indexCmd.Flags().StringSlice("exclude", nil, "Directory names to skip")
	indexCmd.Flags().Bool("memory", false, "Index in memory and only print statistics")

	// Analysis Commands
	contextCmd := &cobra.Command{
		Use:   "context <file:line|routine>",
		Short: "Print the collected source context of a routine",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runContext,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze <file:line|routine>...",
		Short: "Generate a lineage report and diagram for one or more routines",
		Args:  cobra.MinimumNArgs(1),
		RunE:  a.runAnalyze,
	}
	analyzeCmd.Flags().Bool("diagram-only", false, "Print only the repaired diagram")
	analyzeCmd.Flags().Bool("fallback", false, "Render the call graph when the model call fails")
	analyzeCmd.Flags().Int("concurrency", 0, "Routines analysed at once")
	analyzeCmd.Flags().Bool("quiet", false, "Do not print progress")

	diagramCmd := &cobra.Command{
		Use:   "diagram <file:line|routine>",
		Short: "Render the call graph below a routine as a Mermaid flowchart",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runDiagram,
	}

	testsCmd := &cobra.Command{
		Use:   "tests <file:line|routine>",
		Short: "Generate unit tests for a routine and write them to the test tree",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runTests,
	}
	testsCmd.Flags().String("mode", "suffix", "What to do when the test file exists: overwrite|suffix|fail")
	testsCmd.Flags().Bool("stdout", false, "Print the tests instead of writing them")
	testsCmd.Flags().Bool("quiet", false, "Do not print progress")

	// Diagram Text Commands
	extractCmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Print the first mermaid block of model output (stdin when no file)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExtract,
	}
	extractCmd.Flags().String("lang", "mermaid", "Fence info string to look for")

	repairCmd := &cobra.Command{
		Use:   "repair [file]",
		Short: "Repair Mermaid flowchart source so it renders (stdin when no file)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRepair,
	}
	repairCmd.Flags().Bool("extract", false, "Extract the first mermaid block before repairing")

	// Integration Commands
	serveCmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Serve the lineage tools over the Model Context Protocol",
		Args:  cobra.NoArgs,
		RunE:  a.runServe,
	}
	serveCmd.Flags().String("http", "", "Listen address for the streamable HTTP transport and /metrics (default: stdio)")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter lineage.yml and register the MCP server in .mcp.json",
		Args:  cobra.NoArgs,
		RunE:  a.runInit,
	}
	initCmd.Flags().Bool("force", false, "Overwrite existing files and entries")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write([]byte(version + "\n"))
			return err
		},
	}

	rootCmd.AddCommand(indexCmd, contextCmd, analyzeCmd, diagramCmd, testsCmd,
		extractCmd, repairCmd, serveCmd, initCmd, versionCmd)
	return rootCmd
}
