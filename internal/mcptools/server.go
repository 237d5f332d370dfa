package mcptools

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// version is set by the linker at build time.
var version = "dev"

// NewLineageMCPServer creates an MCP server with every lineage tool
// registered.
func NewLineageMCPServer(svc *LineageService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "lineage",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_repository",
		Description: "Index a repository into a symbol graph. Parses Java, Go, Python, TypeScript and Rust files with tree-sitter and resolves calls and field/variable references between routines.",
	}, svc.IndexRepository)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "query_symbols",
		Description: "Search the indexed symbols by name substring. Optionally filter by symbol kind and limit results.",
	}, svc.QuerySymbols)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_dependencies",
		Description: "Follow call edges downstream or upstream from a routine and return the call chains up to a depth.",
	}, svc.GetDependencies)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "collect_context",
		Description: "Collect the source of a routine and of every routine it transitively calls, each once, with the declarations of the fields and variables they reference.",
	}, svc.CollectContext)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_lineage",
		Description: "Collect a routine's context, ask the configured model for a data lineage report and return the report with its repaired Mermaid diagram.",
	}, svc.AnalyzeLineage)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "call_diagram",
		Description: "Render the call graph below a routine as a Mermaid flowchart without calling a model.",
	}, svc.CallDiagram)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "extract_diagram",
		Description: "Return the first ```mermaid fenced block in a piece of text. Fails when there is none.",
	}, svc.ExtractDiagram)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "repair_diagram",
		Description: "Normalise Mermaid flowchart source so it parses: adds a graph declaration, re-indents, rewrites inline edge conditions and quotes node labels.",
	}, svc.RepairDiagram)

	return server
}

// RunMCPServerStdio runs the MCP server on stdio transport, blocking
// until stdin is closed or the context is cancelled.
func RunMCPServerStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// NewHTTPHandler serves the MCP streamable HTTP transport at / and
// Prometheus metrics at /metrics.
func NewHTTPHandler(server *mcp.Server) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	))
	return mux
}

// RunMCPServer starts an HTTP server exposing the MCP tools and metrics.
func RunMCPServer(ctx context.Context, server *mcp.Server, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           NewHTTPHandler(server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
