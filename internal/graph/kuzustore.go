//go:build cgo

package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	kuzu "github.com/kuzudb/go-kuzu"
)

// KuzuStore implements the Store interface using KuzuDB as the graph backend.
// It requires CGO because the go-kuzu driver wraps KuzuDB's C library.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(":memory:", cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at the
// given directory path. KuzuDB creates the directory itself for new databases.
// For existing databases, the directory must contain valid KuzuDB files.
// This enables persistent graph indexes that survive across sessions.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	// Ensure parent directory exists (KuzuDB creates the leaf directory).
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(dbPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open file database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// ddlStatements defines the Cypher DDL executed by InitSchema.
// Order matters: node tables must precede relationship tables.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS File(
		path STRING,
		language STRING,
		loc INT64,
		PRIMARY KEY(path)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Symbol(
		id STRING,
		name STRING,
		kind STRING,
		container STRING,
		local BOOLEAN,
		exported BOOLEAN,
		file_path STRING,
		start_line INT64,
		end_line INT64,
		text STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE REL TABLE IF NOT EXISTS DEFINES(FROM File TO Symbol)`,
	`CREATE REL TABLE IF NOT EXISTS CALLS(
		FROM Symbol TO Symbol,
		expr STRING,
		receiver STRING,
		line INT64,
		ordinal INT64
	)`,
	`CREATE REL TABLE IF NOT EXISTS REFERS_TO(
		FROM Symbol TO Symbol,
		expr STRING,
		receiver STRING,
		line INT64,
		ordinal INT64
	)`,
}

// relTables maps edge kinds to relationship tables. REFERENCES is a
// reserved word in Cypher, so those edges live in REFERS_TO.
var relTables = map[EdgeKind]string{
	EdgeKindDefines:    "DEFINES",
	EdgeKindCalls:      "CALLS",
	EdgeKindReferences: "REFERS_TO",
}

// InitSchema creates all node and relationship tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// ---------- Write operations ----------

// AddFile inserts a File node.
func (s *KuzuStore) AddFile(_ context.Context, node FileNode) error {
	return s.exec(
		"CREATE (f:File {path: $path, language: $lang, loc: $loc})",
		map[string]any{
			"path": node.Path,
			"lang": string(node.Language),
			"loc":  int64(node.LOC),
		},
	)
}

// AddSymbol inserts a Symbol node.
func (s *KuzuStore) AddSymbol(_ context.Context, node SymbolNode) error {
	return s.exec(
		`CREATE (s:Symbol {
			id: $id,
			name: $name,
			kind: $kind,
			container: $container,
			local: $local,
			exported: $exported,
			file_path: $fp,
			start_line: $sl,
			end_line: $el,
			text: $text
		})`,
		map[string]any{
			"id":        node.ID,
			"name":      node.Name,
			"kind":      string(node.Kind),
			"container": node.Container,
			"local":     node.Local,
			"exported":  node.Exported,
			"fp":        node.FilePath,
			"sl":        int64(node.StartLine),
			"el":        int64(node.EndLine),
			"text":      node.Text,
		},
	)
}

// AddEdge inserts a relationship edge between two nodes.
// The Cypher statement is chosen based on the EdgeKind.
func (s *KuzuStore) AddEdge(_ context.Context, edge Edge) error {
	cypher, err := edgeCypher(edge.Kind)
	if err != nil {
		return err
	}
	params := map[string]any{
		"src": edge.SourceID,
		"dst": edge.TargetID,
	}
	if edge.Kind != EdgeKindDefines {
		params["expr"] = edge.Expr
		params["recv"] = edge.Receiver
		params["line"] = int64(edge.Line)
		params["ord"] = int64(edge.Ordinal)
	}
	return s.exec(cypher, params)
}

// edgeCypher returns the MATCH-CREATE Cypher for the given edge kind.
func edgeCypher(kind EdgeKind) (string, error) {
	switch kind {
	case EdgeKindDefines:
		return `MATCH (a:File {path: $src}), (b:Symbol {id: $dst})
				CREATE (a)-[:DEFINES]->(b)`, nil
	case EdgeKindCalls:
		return `MATCH (a:Symbol {id: $src}), (b:Symbol {id: $dst})
				CREATE (a)-[:CALLS {expr: $expr, receiver: $recv, line: $line, ordinal: $ord}]->(b)`, nil
	case EdgeKindReferences:
		return `MATCH (a:Symbol {id: $src}), (b:Symbol {id: $dst})
				CREATE (a)-[:REFERS_TO {expr: $expr, receiver: $recv, line: $line, ordinal: $ord}]->(b)`, nil
	default:
		return "", fmt.Errorf("kuzu: unsupported edge kind: %s", kind)
	}
}

// ---------- Read operations ----------

// symbolColumns is the RETURN list decoded by rowToSymbol.
const symbolColumns = `s.id, s.name, s.kind, s.container, s.local, s.exported,
	s.file_path, s.start_line, s.end_line, s.text`

// GetFile retrieves a single File node by path, or returns nil if not found.
func (s *KuzuStore) GetFile(_ context.Context, path string) (*FileNode, error) {
	rows, err := s.query(
		"MATCH (f:File {path: $path}) RETURN f.path, f.language, f.loc",
		map[string]any{"path": path},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	return &FileNode{
		Path:     toString(r[0]),
		Language: Language(toString(r[1])),
		LOC:      toInt(r[2]),
	}, nil
}

// GetSymbol retrieves a single Symbol node by ID, or nil if not found.
func (s *KuzuStore) GetSymbol(_ context.Context, id string) (*SymbolNode, error) {
	rows, err := s.query(
		"MATCH (s:Symbol {id: $id}) RETURN "+symbolColumns,
		map[string]any{"id": id},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToSymbol(rows[0]), nil
}

// SymbolAt returns the innermost routine in filePath that spans line.
func (s *KuzuStore) SymbolAt(_ context.Context, filePath string, line int) (*SymbolNode, error) {
	rows, err := s.query(
		`MATCH (s:Symbol)
		 WHERE s.file_path = $fp AND s.start_line <= $line AND s.end_line >= $line
		 RETURN `+symbolColumns,
		map[string]any{"fp": filePath, "line": int64(line)},
	)
	if err != nil {
		return nil, err
	}
	candidates := make([]SymbolNode, 0, len(rows))
	for _, r := range rows {
		candidates = append(candidates, *rowToSymbol(r))
	}
	return innermost(candidates, line), nil
}

// QuerySymbols returns symbols whose name contains the query string,
// ordered by ID. A limit <= 0 returns all matches.
func (s *KuzuStore) QuerySymbols(_ context.Context, queryStr string, limit int) ([]SymbolNode, error) {
	cypher := `MATCH (s:Symbol) WHERE lower(s.name) CONTAINS lower($q)
		 RETURN ` + symbolColumns + ` ORDER BY s.id`
	params := map[string]any{"q": queryStr}
	if limit > 0 {
		cypher += " LIMIT $lim"
		params["lim"] = int64(limit)
	}
	rows, err := s.query(cypher, params)
	if err != nil {
		return nil, err
	}
	out := make([]SymbolNode, 0, len(rows))
	for _, r := range rows {
		out = append(out, *rowToSymbol(r))
	}
	return out, nil
}

// Callees returns the CALLS edges leaving routineID in source order.
func (s *KuzuStore) Callees(_ context.Context, routineID string) ([]Edge, error) {
	return s.edgesFrom(routineID, EdgeKindCalls)
}

// References returns the REFERENCES edges leaving routineID in source order.
func (s *KuzuStore) References(_ context.Context, routineID string) ([]Edge, error) {
	return s.edgesFrom(routineID, EdgeKindReferences)
}

func (s *KuzuStore) edgesFrom(id string, kind EdgeKind) ([]Edge, error) {
	// Table name is a fixed internal constant, not user input.
	cypher := fmt.Sprintf(
		`MATCH (a:Symbol {id: $id})-[r:%s]->(b:Symbol)
		 RETURN b.id, r.expr, r.receiver, r.line, r.ordinal`, relTables[kind])
	rows, err := s.query(cypher, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	out := make([]Edge, 0, len(rows))
	for _, r := range rows {
		out = append(out, Edge{
			SourceID: id,
			TargetID: toString(r[0]),
			Kind:     kind,
			Expr:     toString(r[1]),
			Receiver: toString(r[2]),
			Line:     toInt(r[3]),
			Ordinal:  toInt(r[4]),
		})
	}
	sortByOrdinal(out)
	return out, nil
}

// ---------- Graph traversal ----------

// GetDependencies performs a BFS over CALLS edges starting from the given
// routine. It returns one DependencyChain per reachable routine.
func (s *KuzuStore) GetDependencies(_ context.Context, nodeID string, dir Direction, maxDepth int) ([]DependencyChain, error) {
	if maxDepth <= 0 {
		maxDepth = 10
	}

	// BFS state.
	type bfsEntry struct {
		path  []string
		depth int
	}
	visited := map[string]bool{nodeID: true}
	queue := []bfsEntry{{path: []string{nodeID}, depth: 0}}
	var chains []DependencyChain

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		tip := cur.path[len(cur.path)-1]
		neighbors, err := s.callNeighbors(tip, dir)
		if err != nil {
			return nil, err
		}
		for _, nb := range neighbors {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			newPath := make([]string, len(cur.path)+1)
			copy(newPath, cur.path)
			newPath[len(cur.path)] = nb
			chains = append(chains, DependencyChain{
				Nodes: newPath,
				Depth: cur.depth + 1,
			})
			queue = append(queue, bfsEntry{path: newPath, depth: cur.depth + 1})
		}
	}
	return chains, nil
}

// callNeighbors returns immediate routine neighbors along CALLS edges.
func (s *KuzuStore) callNeighbors(id string, dir Direction) ([]string, error) {
	var cypher string
	switch dir {
	case DirectionDownstream:
		cypher = "MATCH (a:Symbol {id: $id})-[r:CALLS]->(b:Symbol) RETURN b.id ORDER BY r.ordinal"
	case DirectionUpstream:
		cypher = "MATCH (a:Symbol)-[:CALLS]->(b:Symbol {id: $id}) RETURN a.id ORDER BY a.id"
	default:
		return nil, fmt.Errorf("kuzu: unknown direction: %s", dir)
	}
	rows, err := s.query(cypher, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, toString(r[0]))
	}
	return out, nil
}

// ---------- Stats ----------

// Stats returns counts of all node and edge tables.
func (s *KuzuStore) Stats(_ context.Context) (*GraphStats, error) {
	files, err := s.countTable("File")
	if err != nil {
		return nil, err
	}
	symbols, err := s.countTable("Symbol")
	if err != nil {
		return nil, err
	}
	rows, err := s.query(
		"MATCH (s:Symbol) WHERE s.kind = $fn OR s.kind = $m RETURN count(s)",
		map[string]any{"fn": string(SymbolKindFunction), "m": string(SymbolKindMethod)},
	)
	if err != nil {
		return nil, err
	}
	routines := 0
	if len(rows) > 0 && len(rows[0]) > 0 {
		routines = toInt(rows[0][0])
	}
	edges, err := s.countEdges()
	if err != nil {
		return nil, err
	}
	return &GraphStats{
		FileCount:    files,
		SymbolCount:  symbols,
		RoutineCount: routines,
		EdgeCount:    edges,
	}, nil
}

// ---------- Internal helpers ----------

// exec runs a parameterized Cypher statement that produces no result rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a parameterized Cypher statement and collects all result rows.
// Each row is a []any slice with values in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// countTable returns the number of rows in a node table.
func (s *KuzuStore) countTable(table string) (int, error) {
	// Table name is a fixed internal constant, not user input.
	cypher := fmt.Sprintf("MATCH (n:%s) RETURN count(n)", table)
	rows, err := s.query(cypher, nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	return toInt(rows[0][0]), nil
}

// countEdges returns the total number of edges across all relationship tables.
func (s *KuzuStore) countEdges() (int, error) {
	total := 0
	for _, t := range relTables {
		cypher := fmt.Sprintf("MATCH ()-[r:%s]->() RETURN count(r)", t)
		rows, err := s.query(cypher, nil)
		if err != nil {
			// Table may not exist yet; treat as zero.
			continue
		}
		if len(rows) > 0 && len(rows[0]) > 0 {
			total += toInt(rows[0][0])
		}
	}
	return total, nil
}

// rowToSymbol converts a symbolColumns result row into a SymbolNode.
func rowToSymbol(r []any) *SymbolNode {
	return &SymbolNode{
		ID:        toString(r[0]),
		Name:      toString(r[1]),
		Kind:      SymbolKind(toString(r[2])),
		Container: toString(r[3]),
		Local:     toBool(r[4]),
		Exported:  toBool(r[5]),
		FilePath:  toString(r[6]),
		StartLine: toInt(r[7]),
		EndLine:   toInt(r[8]),
		Text:      toString(r[9]),
	}
}

// ---------- Type coercion helpers ----------
// KuzuDB returns typed Go values (int64, float64, bool, string).
// These helpers safely coerce any -> concrete type.

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toBool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}
