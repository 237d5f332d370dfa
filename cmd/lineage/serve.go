package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/lineage/internal/gateway"
	"github.com/dusk-indust/lineage/internal/graph"
	"github.com/dusk-indust/lineage/internal/mcptools"
	"github.com/dusk-indust/lineage/internal/orchestrator"
)

// runServe exposes the lineage tools over MCP. A persisted index of the
// project is served until index_repository replaces it.
func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("http")
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []mcptools.ServiceOption{
		mcptools.WithLogger(a.logger),
		mcptools.WithIndexDefaults(a.cfg.Index),
	}

	if !a.offline {
		gw, err := gateway.New(a.cfg.Gateway, gateway.WithLogger(a.logger))
		if err != nil {
			return err
		}
		if gw != nil {
			// Not probed here: the model may start after the server, and a
			// failed call falls back to the call graph.
			cfg := orchestrator.FromProject(a.cfg, orchestrator.CapModel)
			cfg.FallbackOnError = true
			opts = append(opts, mcptools.WithGateway(gw, cfg))
		}
	}
	asm, err := a.assembler()
	if err != nil {
		return err
	}
	if asm != nil {
		opts = append(opts, mcptools.WithAssembler(asm))
	}
	if path := a.graphPath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			if store, err := graph.NewKuzuFileStore(path); err == nil {
				opts = append(opts, mcptools.WithStore(store))
			} else {
				a.logger.Warn("cannot open persisted index", "path", path, "error", err)
			}
		}
	}

	svc := mcptools.NewLineageService(graph.NewTreeSitterParser(), opts...)
	defer svc.Close()

	server := mcptools.NewLineageMCPServer(svc)
	if addr != "" {
		a.logger.Info("serving MCP over HTTP", "addr", addr)
		return mcptools.RunMCPServer(ctx, server, addr)
	}
	return mcptools.RunMCPServerStdio(ctx, server)
}
