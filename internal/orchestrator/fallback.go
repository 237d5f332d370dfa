package orchestrator

import (
	"github.com/dusk-indust/lineage/internal/diagram"
)

// renderOffline fills r with a diagram of the collected call graph. It is
// used when no model is reachable, and after a failed model call when
// Config.FallbackOnError is set.
func renderOffline(r *Report) {
	r.Offline = true
	r.Block = ""
	r.Diagram = diagram.RenderCallGraph(r.Document)
	r.DiagramErr = nil
}
