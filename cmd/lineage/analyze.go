package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/lineage/internal/orchestrator"
	"github.com/dusk-indust/lineage/internal/testfile"
)

func (a *app) runContext(cmd *cobra.Command, args []string) error {
	s, err := a.pipeline(cmd.Context(), false, nil, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	_, doc, err := s.Collect(cmd.Context(), a.parseTarget(args[0]))
	if err != nil {
		return err
	}
	_, err = io.WriteString(cmd.OutOrStdout(), doc.String())
	return err
}

// runDiagram prints the call graph diagram without contacting the model.
func (a *app) runDiagram(cmd *cobra.Command, args []string) error {
	s, err := a.pipeline(cmd.Context(), false, nil, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	r, err := s.Analyze(cmd.Context(), a.parseTarget(args[0]))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), r.Diagram)
	return err
}

func (a *app) runAnalyze(cmd *cobra.Command, args []string) error {
	diagramOnly, _ := cmd.Flags().GetBool("diagram-only")
	fallback, _ := cmd.Flags().GetBool("fallback")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	quiet, _ := cmd.Flags().GetBool("quiet")

	var progress io.Writer
	if !quiet {
		progress = cmd.ErrOrStderr()
	}
	s, err := a.pipeline(cmd.Context(), true, progress, func(c *orchestrator.Config) {
		c.FallbackOnError = fallback
		c.Concurrency = concurrency
	})
	if err != nil {
		return err
	}
	defer s.Close()

	results, runErr := s.AnalyzeAll(cmd.Context(), a.parseTargets(args))

	out := cmd.OutOrStdout()
	for i, res := range results {
		if res.Err != nil {
			continue
		}
		if len(results) > 1 {
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "## %s\n\n", res.Report.Root.ID)
		}
		printReport(out, res.Report, diagramOnly)
	}
	return runErr
}

// printReport writes the model's report followed by the repaired diagram.
// In offline mode only the call graph diagram exists.
func printReport(w io.Writer, r *orchestrator.Report, diagramOnly bool) {
	if !diagramOnly && !r.Offline {
		fmt.Fprintln(w, r.Response)
		fmt.Fprintln(w)
	}
	switch {
	case r.DiagramErr != nil:
		fmt.Fprintf(w, "(no usable diagram: %v)\n", r.DiagramErr)
	case r.Offline:
		fmt.Fprintln(w, "Call graph (no model available):")
		fmt.Fprintf(w, "```mermaid\n%s\n```\n", r.Diagram)
	default:
		if !diagramOnly {
			fmt.Fprintln(w, "Repaired diagram:")
		}
		fmt.Fprintf(w, "```mermaid\n%s\n```\n", r.Diagram)
	}
}

func (a *app) runTests(cmd *cobra.Command, args []string) error {
	modeFlag, _ := cmd.Flags().GetString("mode")
	toStdout, _ := cmd.Flags().GetBool("stdout")
	quiet, _ := cmd.Flags().GetBool("quiet")

	mode, err := testfile.ParseMode(modeFlag)
	if err != nil {
		return err
	}
	var progress io.Writer
	if !quiet {
		progress = cmd.ErrOrStderr()
	}
	s, err := a.pipeline(cmd.Context(), true, progress, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	t := a.parseTarget(args[0])
	r, err := s.GenerateTests(cmd.Context(), t)
	if errors.Is(err, orchestrator.ErrOffline) {
		return fmt.Errorf("%w: check the gateway settings in lineage.yml", err)
	}
	if err != nil {
		return err
	}

	if toStdout {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), r.Code)
		return err
	}
	path, err := writeTests(a.project, t, r, mode)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  created %s\n", dotRelative(a.project, path))
	return nil
}
