package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/lineage/internal/config"
)

// mcpConfig represents the structure of a .mcp.json file.
type mcpConfig struct {
	MCPServers map[string]json.RawMessage `json:"mcpServers"`
}

// lineageMCPEntry is the MCP server configuration for the lineage binary.
var lineageMCPEntry = json.RawMessage(`{
  "type": "stdio",
  "command": "lineage",
  "args": ["serve-mcp"]
}`)

// runInit writes a starter lineage.yml and registers the MCP server in the
// project's .mcp.json.
func (a *app) runInit(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")
	out := cmd.OutOrStdout()

	if err := writeStarterConfig(out, a.project, force); err != nil {
		return err
	}
	if err := mergeMCPConfig(out, filepath.Join(a.project, ".mcp.json"), force); err != nil {
		return err
	}

	fmt.Fprintln(out, "\nSetup complete. Run 'lineage index' to persist the symbol graph.")
	return nil
}

// writeStarterConfig writes the default settings to lineage.yml unless a
// config file already exists.
func writeStarterConfig(out io.Writer, root string, force bool) error {
	dest := filepath.Join(root, config.FileNames[0])
	if !force {
		for _, name := range config.FileNames {
			if _, err := os.Stat(filepath.Join(root, name)); err == nil {
				fmt.Fprintf(out, "  skipped %s (exists, use --force to overwrite)\n", name)
				return nil
			}
		}
	}

	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	fmt.Fprintf(out, "  created %s\n", dotRelative(root, dest))
	return nil
}

// mergeMCPConfig creates or merges the lineage entry into .mcp.json.
func mergeMCPConfig(out io.Writer, mcpPath string, force bool) error {
	var cfg mcpConfig

	data, err := os.ReadFile(mcpPath)
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing %s: %w", mcpPath, err)
		}
	}

	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]json.RawMessage)
	}

	if _, exists := cfg.MCPServers["lineage"]; exists && !force {
		fmt.Fprintf(out, "  skipped .mcp.json lineage entry (exists, use --force to overwrite)\n")
		return nil
	}

	cfg.MCPServers["lineage"] = lineageMCPEntry

	encoded, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling .mcp.json: %w", err)
	}

	if err := os.WriteFile(mcpPath, append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", mcpPath, err)
	}

	action := "created"
	if data != nil {
		action = "updated"
	}
	fmt.Fprintf(out, "  %s .mcp.json with lineage MCP server\n", action)
	return nil
}

// dotRelative returns a display path relative to the project root, prefixed
// with "./".
func dotRelative(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return "./" + filepath.ToSlash(rel)
}
