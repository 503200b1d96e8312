package graph

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// NodeIDMap maps an external stable symbol ID to the internal sqlite row ID
// assigned when it was inserted, for use by a subsequent bulk edge insert.
type NodeIDMap map[string]int64

// Store is the persistent node/edge database for one project's code graph.
// Symbols become nodes, Edges become relationships; both are flattened into
// two sqlite tables keyed by the symbol's stable string ID, never held as
// in-memory bidirectional references.
type Store struct {
	db *sql.DB
}

// Open opens or creates a graph database at path. Use ":memory:" for a
// private in-memory database (the form used by tests).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening graph store: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1) // a private :memory: db is per-connection
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	row_id      INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	label       TEXT NOT NULL,
	name        TEXT NOT NULL,
	kind        TEXT NOT NULL,
	file_path   TEXT NOT NULL,
	start_line  INTEGER NOT NULL,
	end_line    INTEGER NOT NULL,
	visibility  TEXT NOT NULL,
	signature   TEXT,
	qualified_name TEXT,
	doc_comment TEXT
);
CREATE INDEX IF NOT EXISTS idx_nodes_file_path ON nodes(file_path);
CREATE INDEX IF NOT EXISTS idx_nodes_name ON nodes(name);

CREATE TABLE IF NOT EXISTS edges (
	row_id      INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id   TEXT NOT NULL,
	target_id   TEXT NOT NULL,
	rel_type    TEXT NOT NULL,
	import_path TEXT,
	alias       TEXT,
	call_type   TEXT,
	line        INTEGER,
	generator   TEXT,
	UNIQUE(source_id, target_id, rel_type)
);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);
`
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("migrating graph store schema: %w", err)
	}
	return nil
}

// relType converts an EdgeKind to its stored relationship-type string.
// Contains uses a leading underscore to avoid clashing with the query
// language's own reserved word.
func relType(k EdgeKind) string {
	switch k.Tag {
	case EdgeContains:
		return "_CONTAINS"
	case EdgeImports:
		return "IMPORTS"
	case EdgeCalls:
		return "CALLS"
	case EdgeInherits:
		return "INHERITS"
	case EdgeImplements:
		return "IMPLEMENTS"
	case EdgeUsesType:
		return "USES_TYPE"
	case EdgeInstantiates:
		return "INSTANTIATES"
	case EdgeReferences:
		return "REFERENCES"
	case EdgeExpandsTo:
		return "EXPANDS_TO"
	case EdgeGeneratedBy:
		return "GENERATED_BY"
	default:
		return string(k.Tag)
	}
}

func visibilityString(v Visibility) string {
	if v.Kind == VisibilityRestricted {
		return "restricted:" + v.Path
	}
	return string(v.Kind)
}

// InsertNode upserts a single symbol and returns its stable ID.
func (s *Store) InsertNode(sym Symbol) (string, error) {
	id := sym.ID()
	_, err := s.db.Exec(upsertNodeSQL, id, string(sym.Kind), sym.Name, string(sym.Kind),
		sym.FilePath, sym.StartLine, sym.EndLine, visibilityString(sym.Visibility),
		nullable(sym.Signature), nullable(sym.QualifiedName), nullable(sym.DocComment))
	if err != nil {
		return "", fmt.Errorf("inserting node %s: %w", id, err)
	}
	return id, nil
}

const upsertNodeSQL = `
INSERT INTO nodes (id, label, name, kind, file_path, start_line, end_line, visibility, signature, qualified_name, doc_comment)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	label=excluded.label, name=excluded.name, kind=excluded.kind,
	file_path=excluded.file_path, start_line=excluded.start_line, end_line=excluded.end_line,
	visibility=excluded.visibility, signature=excluded.signature,
	qualified_name=excluded.qualified_name, doc_comment=excluded.doc_comment
`

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// InsertNodesBulk inserts every symbol inside one transaction and returns
// the external-ID to internal-row-ID map needed by InsertEdgesBulk.
func (s *Store) InsertNodesBulk(symbols []Symbol) (NodeIDMap, error) {
	out := make(NodeIDMap, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning bulk node insert: %w", err)
	}
	stmt, err := tx.Prepare(upsertNodeSQL)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("preparing bulk node insert: %w", err)
	}
	for _, sym := range symbols {
		id := sym.ID()
		if _, err := stmt.Exec(id, string(sym.Kind), sym.Name, string(sym.Kind),
			sym.FilePath, sym.StartLine, sym.EndLine, visibilityString(sym.Visibility),
			nullable(sym.Signature), nullable(sym.QualifiedName), nullable(sym.DocComment)); err != nil {
			stmt.Close()
			tx.Rollback()
			return nil, fmt.Errorf("inserting node %s: %w", id, err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing bulk node insert: %w", err)
	}
	rows, err := s.db.Query(`SELECT id, row_id FROM nodes WHERE id IN (` + placeholders(len(symbols)) + `)`,
		idArgs(symbols)...)
	if err != nil {
		return nil, fmt.Errorf("reading back bulk-inserted row ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var rowID int64
		if err := rows.Scan(&id, &rowID); err != nil {
			return nil, err
		}
		out[id] = rowID
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		s += "?"
	}
	return s
}

func idArgs(symbols []Symbol) []interface{} {
	args := make([]interface{}, len(symbols))
	for i, sym := range symbols {
		args[i] = sym.ID()
	}
	return args
}

// InsertEdge upserts a single edge.
func (s *Store) InsertEdge(e Edge) error {
	_, err := s.db.Exec(upsertEdgeSQL, e.SourceID, e.TargetID, relType(e.Kind),
		nullable(e.Kind.ImportPath), nullable(e.Kind.ImportAlias),
		nullableCallType(e.Kind), nullableLine(e.Kind), nullable(e.Kind.Generator))
	if err != nil {
		return fmt.Errorf("inserting edge %s->%s: %w", e.SourceID, e.TargetID, err)
	}
	return nil
}

const upsertEdgeSQL = `
INSERT INTO edges (source_id, target_id, rel_type, import_path, alias, call_type, line, generator)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(source_id, target_id, rel_type) DO UPDATE SET
	import_path=excluded.import_path, alias=excluded.alias,
	call_type=excluded.call_type, line=excluded.line, generator=excluded.generator
`

func nullableCallType(k EdgeKind) interface{} {
	if k.Tag != EdgeCalls {
		return nil
	}
	return string(k.CallType)
}

func nullableLine(k EdgeKind) interface{} {
	if k.Tag != EdgeCalls {
		return nil
	}
	return k.Line
}

// InsertEdgesBulk inserts only the edges whose both endpoints appear in
// idMap, returning the count actually inserted.
func (s *Store) InsertEdgesBulk(edges []Edge, idMap NodeIDMap) (int, error) {
	if len(edges) == 0 {
		return 0, nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning bulk edge insert: %w", err)
	}
	stmt, err := tx.Prepare(upsertEdgeSQL)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("preparing bulk edge insert: %w", err)
	}
	inserted := 0
	for _, e := range edges {
		if _, okSrc := idMap[e.SourceID]; !okSrc {
			continue
		}
		if _, okTgt := idMap[e.TargetID]; !okTgt {
			continue
		}
		if _, err := stmt.Exec(e.SourceID, e.TargetID, relType(e.Kind),
			nullable(e.Kind.ImportPath), nullable(e.Kind.ImportAlias),
			nullableCallType(e.Kind), nullableLine(e.Kind), nullable(e.Kind.Generator)); err != nil {
			stmt.Close()
			tx.Rollback()
			return 0, fmt.Errorf("inserting edge %s->%s: %w", e.SourceID, e.TargetID, err)
		}
		inserted++
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing bulk edge insert: %w", err)
	}
	return inserted, nil
}

// InsertEdgesBatchSlow inserts edges one at a time inside a single
// transaction, rolling back entirely on any failure. Used for the slow-path
// partition of edges whose endpoints were not in a prior bulk node insert.
func (s *Store) InsertEdgesBatchSlow(edges []Edge) error {
	if len(edges) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning slow edge batch: %w", err)
	}
	stmt, err := tx.Prepare(upsertEdgeSQL)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing slow edge batch: %w", err)
	}
	for _, e := range edges {
		if _, err := stmt.Exec(e.SourceID, e.TargetID, relType(e.Kind),
			nullable(e.Kind.ImportPath), nullable(e.Kind.ImportAlias),
			nullableCallType(e.Kind), nullableLine(e.Kind), nullable(e.Kind.Generator)); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("inserting edge %s->%s: %w", e.SourceID, e.TargetID, err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing slow edge batch: %w", err)
	}
	return nil
}

// DeleteFile deletes every node whose file_path matches, cascading to
// incident edges, inside one transaction. Returns the number of nodes
// deleted.
func (s *Store) DeleteFile(filePath string) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning delete_file: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM edges WHERE source_id IN (SELECT id FROM nodes WHERE file_path = ?) OR target_id IN (SELECT id FROM nodes WHERE file_path = ?)`, filePath, filePath)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("deleting incident edges for %s: %w", filePath, err)
	}
	_ = res
	result, err := tx.Exec(`DELETE FROM nodes WHERE file_path = ?`, filePath)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("deleting nodes for %s: %w", filePath, err)
	}
	n, _ := result.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing delete_file: %w", err)
	}
	return int(n), nil
}

// DeleteNode deletes a single node and its incident edges.
func (s *Store) DeleteNode(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM edges WHERE source_id = ? OR target_id = ?`, id, id); err != nil {
		tx.Rollback()
		return fmt.Errorf("deleting incident edges for %s: %w", id, err)
	}
	if _, err := tx.Exec(`DELETE FROM nodes WHERE id = ?`, id); err != nil {
		tx.Rollback()
		return fmt.Errorf("deleting node %s: %w", id, err)
	}
	return tx.Commit()
}

// HasNode reports whether a node with the given stable ID exists.
func (s *Store) HasNode(id string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM nodes WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking node %s: %w", id, err)
	}
	return exists, nil
}

// Node is the materialized row shape returned by query helpers.
type Node struct {
	ID            string
	Label         string
	Name          string
	Kind          string
	FilePath      string
	StartLine     int
	EndLine       int
	Visibility    string
	Signature     string
	QualifiedName string
	DocComment    string
}

const selectNodeCols = `id, label, name, kind, file_path, start_line, end_line, visibility, COALESCE(signature,''), COALESCE(qualified_name,''), COALESCE(doc_comment,'')`

func scanNode(rows *sql.Rows) (Node, error) {
	var n Node
	err := rows.Scan(&n.ID, &n.Label, &n.Name, &n.Kind, &n.FilePath, &n.StartLine, &n.EndLine,
		&n.Visibility, &n.Signature, &n.QualifiedName, &n.DocComment)
	return n, err
}

// GetNode fetches a single node by ID.
func (s *Store) GetNode(id string) (*Node, error) {
	rows, err := s.db.Query(`SELECT `+selectNodeCols+` FROM nodes WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, nil
	}
	n, err := scanNode(rows)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// FindCallers returns every node with a CALLS edge targeting calleeID.
func (s *Store) FindCallers(calleeID string) ([]Node, error) {
	return s.queryJoined(`
SELECT `+prefixCols("n")+` FROM nodes n
JOIN edges e ON e.source_id = n.id
WHERE e.rel_type = 'CALLS' AND e.target_id = ?`, calleeID)
}

// FindCallees returns every node targeted by a CALLS edge from callerID.
func (s *Store) FindCallees(callerID string) ([]Node, error) {
	return s.queryJoined(`
SELECT `+prefixCols("n")+` FROM nodes n
JOIN edges e ON e.target_id = n.id
WHERE e.rel_type = 'CALLS' AND e.source_id = ?`, callerID)
}

// FindImplementations returns every node with an IMPLEMENTS edge targeting
// traitID.
func (s *Store) FindImplementations(traitID string) ([]Node, error) {
	return s.queryJoined(`
SELECT `+prefixCols("n")+` FROM nodes n
JOIN edges e ON e.source_id = n.id
WHERE e.rel_type = 'IMPLEMENTS' AND e.target_id = ?`, traitID)
}

// FindSymbolsInFile returns every node for filePath, ordered by start line.
func (s *Store) FindSymbolsInFile(filePath string) ([]Node, error) {
	rows, err := s.db.Query(`SELECT `+selectNodeCols+` FROM nodes WHERE file_path = ? ORDER BY start_line`, filePath)
	if err != nil {
		return nil, fmt.Errorf("find_symbols_in_file %s: %w", filePath, err)
	}
	defer rows.Close()
	return collectNodes(rows)
}

// FindByName returns every node with an exact name match.
func (s *Store) FindByName(name string) ([]Node, error) {
	rows, err := s.db.Query(`SELECT `+selectNodeCols+` FROM nodes WHERE name = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("find_by_name %s: %w", name, err)
	}
	defer rows.Close()
	return collectNodes(rows)
}

func prefixCols(alias string) string {
	cols := []string{"id", "label", "name", "kind", "file_path", "start_line", "end_line",
		"visibility", "signature", "qualified_name", "doc_comment"}
	s := ""
	for i, c := range cols {
		if i > 0 {
			s += ", "
		}
		if c == "signature" || c == "qualified_name" || c == "doc_comment" {
			s += "COALESCE(" + alias + "." + c + ",'')"
		} else {
			s += alias + "." + c
		}
	}
	return s
}

func (s *Store) queryJoined(query string, arg string) ([]Node, error) {
	rows, err := s.db.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return collectNodes(rows)
}

func collectNodes(rows *sql.Rows) ([]Node, error) {
	var out []Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Stats reports node and edge counts.
type Stats struct {
	NodeCount int64
	EdgeCount int64
}

func (s *Store) Stats() (Stats, error) {
	var st Stats
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM nodes`).Scan(&st.NodeCount); err != nil {
		return st, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM edges`).Scan(&st.EdgeCount); err != nil {
		return st, err
	}
	return st, nil
}

// EscapeString escapes single quotes for use inside an inline Cypher-like
// query predicate, preventing injection via symbol names or file paths.
func EscapeString(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'', '\'')
		} else {
			out = append(out, s[i])
		}
	}
	return string(out)
}

// Query runs a narrow subset of Cypher-like query strings: single-node
// property match ("MATCH (n {prop:'x'}) RETURN n") and one-hop directed
// traversal with a literal relationship type
// ("MATCH (a)-[:REL]->(b {prop:'x'}) RETURN a" or "RETURN b"). This is the
// only shape the rest of the system ever issues; anything else is reported
// as an unsupported-query error rather than silently misparsed.
func (s *Store) Query(cypher string) ([]Node, error) {
	q, err := parseQuery(cypher)
	if err != nil {
		return nil, fmt.Errorf("parsing query %q: %w", cypher, err)
	}
	return q.run(s)
}
