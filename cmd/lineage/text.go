package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/lineage/internal/diagram"
)

// readInput returns the named file, or stdin when args is empty.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return string(data), nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	lang, _ := cmd.Flags().GetString("lang")
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	b, err := diagram.Extract(text, lang, diagram.ReportAbsence)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), b)
	return err
}

func runRepair(cmd *cobra.Command, args []string) error {
	extract, _ := cmd.Flags().GetBool("extract")
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	var r diagram.Repaired
	if extract {
		r, err = diagram.ExtractAndRepair(text)
	} else {
		r, err = diagram.Repair(diagram.Block(text))
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), r)
	return err
}
