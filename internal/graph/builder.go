package graph

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BuildStats accumulates counters across one or more Build* calls. Merge
// folds another BuildStats into the receiver, used by BuildDirectory to
// roll per-file results into a single summary.
type BuildStats struct {
	NodesAdded    int
	EdgesAdded    int
	ParseTimeMs   int64
	StoreTimeMs   int64
	FilesProcessed int
}

func (s *BuildStats) Merge(other BuildStats) {
	s.NodesAdded += other.NodesAdded
	s.EdgesAdded += other.EdgesAdded
	s.ParseTimeMs += other.ParseTimeMs
	s.StoreTimeMs += other.StoreTimeMs
	s.FilesProcessed += other.FilesProcessed
}

var skippedBuildDirs = map[string]bool{
	"target":       true,
	"node_modules": true,
	"__pycache__":  true,
	"vendor":       true,
}

// Builder drives a Parser and an Extractor over source files and inserts
// the resulting symbols and edges into a Store.
type Builder struct {
	parser *Parser
	store  *Store
}

func NewBuilder(parser *Parser, store *Store) *Builder {
	return &Builder{parser: parser, store: store}
}

// BuildFile parses path, extracts its symbols and edges, and inserts them
// into the store. Files whose language has no registered Extractor are
// reported as an "unsupported language" error so callers (BuildDirectory)
// can choose to skip them silently.
func (b *Builder) BuildFile(path string) (BuildStats, error) {
	var stats BuildStats

	parseStart := time.Now()
	parsed, err := b.parser.ParseFile(path)
	if err != nil {
		return stats, fmt.Errorf("parsing %s: %w", path, err)
	}
	stats.ParseTimeMs = time.Since(parseStart).Milliseconds()

	extractor := ExtractorFor(parsed.Language)
	if extractor == nil {
		return stats, fmt.Errorf("unsupported language for %s: %s", path, parsed.Language)
	}

	symbols, err := extractor.ExtractSymbols(parsed)
	if err != nil {
		return stats, fmt.Errorf("extracting symbols from %s: %w", path, err)
	}
	imports, err := extractor.ExtractImports(parsed)
	if err != nil {
		return stats, fmt.Errorf("extracting imports from %s: %w", path, err)
	}
	calls, err := extractor.ExtractCalls(parsed)
	if err != nil {
		return stats, fmt.Errorf("extracting calls from %s: %w", path, err)
	}
	impls, err := extractor.ExtractImplementations(parsed)
	if err != nil {
		return stats, fmt.Errorf("extracting implementations from %s: %w", path, err)
	}

	fileSymbol := NewSymbol(filepath.Base(path), KindFile, path, 1, 1).WithVisibility(Public)

	allSymbols := make([]Symbol, 0, len(symbols)+1)
	allSymbols = append(allSymbols, symbols...)
	allSymbols = append(allSymbols, fileSymbol)

	storeStart := time.Now()
	idMap, err := b.store.InsertNodesBulk(allSymbols)
	if err != nil {
		return stats, fmt.Errorf("storing symbols from %s: %w", path, err)
	}
	stats.NodesAdded += len(allSymbols)

	edges := buildEdges(fileSymbol, symbols, imports, calls, impls)

	var bulkEdges, slowEdges []Edge
	for _, e := range edges {
		_, srcOK := idMap[e.SourceID]
		_, dstOK := idMap[e.TargetID]
		if srcOK && dstOK {
			bulkEdges = append(bulkEdges, e)
		} else {
			slowEdges = append(slowEdges, e)
		}
	}

	added, err := b.store.InsertEdgesBulk(bulkEdges, idMap)
	if err != nil {
		return stats, fmt.Errorf("storing bulk edges from %s: %w", path, err)
	}
	stats.EdgesAdded += added

	if len(slowEdges) > 0 {
		if err := b.store.InsertEdgesBatchSlow(slowEdges); err != nil {
			return stats, fmt.Errorf("storing slow-path edges from %s: %w", path, err)
		}
		stats.EdgesAdded += len(slowEdges)
	}

	stats.StoreTimeMs = time.Since(storeStart).Milliseconds()
	stats.FilesProcessed = 1
	return stats, nil
}

// RebuildFile deletes any existing nodes/edges for path and rebuilds it
// from scratch. A missing prior entry is not an error.
func (b *Builder) RebuildFile(path string) (BuildStats, error) {
	_, _ = b.store.DeleteFile(path)
	return b.BuildFile(path)
}

// BuildDirectory recurses through root, building every file whose
// extension is supported. Dot-prefixed directories and vendor/build
// directories are skipped. A file with an unsupported language, or one
// that fails to parse or extract, is skipped; any other error (a store
// failure or an unreadable directory) aborts the whole walk.
func (b *Builder) BuildDirectory(root string) (BuildStats, error) {
	var stats BuildStats
	err := b.buildDirectoryRecursive(root, &stats)
	return stats, err
}

func (b *Builder) buildDirectoryRecursive(dir string, stats *BuildStats) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(dir, name)
		if entry.IsDir() {
			if skippedBuildDirs[name] {
				continue
			}
			if err := b.buildDirectoryRecursive(full, stats); err != nil {
				return err
			}
			continue
		}
		if !isSupportedBuildFile(name) {
			continue
		}
		fileStats, err := b.BuildFile(full)
		if err != nil {
			msg := err.Error()
			if strings.Contains(msg, "unsupported language") ||
				strings.HasPrefix(msg, "parsing ") ||
				strings.HasPrefix(msg, "extracting ") {
				continue
			}
			return err
		}
		stats.Merge(fileStats)
	}
	return nil
}

func isSupportedBuildFile(name string) bool {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	_, ok := LanguageFromExtension(ext)
	return ok
}

// buildEdges constructs the CONTAINS, IMPORTS, CALLS, and IMPLEMENTS
// edges for one file's extraction results.
func buildEdges(fileSymbol Symbol, symbols []Symbol, imports []Import, calls []Call, impls []Impl) []Edge {
	var edges []Edge

	for _, sym := range symbols {
		if isTopLevelContainmentTarget(sym) {
			edges = append(edges, ContainsEdge(fileSymbol.ID(), sym.ID()))
		}
	}

	for _, imp := range imports {
		target := "import__" + sanitizeImportPath(imp.Path)
		edges = append(edges, ImportsEdge(fileSymbol.ID(), target, imp.Path, imp.Alias))
	}

	callable := make(map[string]*Symbol, len(symbols))
	for i := range symbols {
		s := &symbols[i]
		if s.Kind.IsCallable() {
			callable[s.Name] = s
		}
	}

	for _, call := range calls {
		caller := lineRangeEnclosesMatching(symbols, call.Line)
		if caller == nil {
			continue
		}
		calleeID := ""
		if target, ok := callable[call.Callee]; ok {
			calleeID = target.ID()
		} else {
			calleeID = "unresolved__" + sanitizeImportPath(call.Callee)
		}
		callType := CallDirect
		if call.IsMethod {
			callType = CallMethod
		}
		edges = append(edges, CallsEdge(caller.ID(), calleeID, callType, call.Line))
	}

	typeByName := make(map[string]*Symbol)
	traitByName := make(map[string]*Symbol)
	for i := range symbols {
		s := &symbols[i]
		if s.Kind == KindStruct || s.Kind == KindEnum || s.Kind == KindClass {
			typeByName[s.Name] = s
		}
		if s.Kind == KindInterface {
			traitByName[s.Name] = s
		}
	}

	for _, impl := range impls {
		typeSym, ok := typeByName[impl.TypeName]
		if !ok {
			continue
		}
		traitID := ""
		if traitSym, ok := traitByName[impl.TraitName]; ok {
			traitID = traitSym.ID()
		} else {
			traitID = "trait__" + sanitizeImportPath(impl.TraitName)
		}
		edges = append(edges, ImplementsEdge(typeSym.ID(), traitID))
	}

	return edges
}

// isTopLevelContainmentTarget reports whether sym should receive a
// top-level CONTAINS edge from its file: symbols nested in a scope
// (qualified by a "::" or "." separator from their enclosing type) are
// instead reachable by traversing through that type, mirroring the
// Rust/Python builders' "name lacks ::" / "kind is Class/Function" rule.
func isTopLevelContainmentTarget(sym Symbol) bool {
	if sym.QualifiedName != "" {
		return false
	}
	return true
}

var importSanitizer = strings.NewReplacer("::", "__", ".", "__", "/", "__")

func sanitizeImportPath(path string) string {
	return importSanitizer.Replace(path)
}
