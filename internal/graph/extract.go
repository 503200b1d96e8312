package graph

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Import is one extracted import/use statement.
type Import struct {
	Path  string
	Alias string
}

// Call is one extracted call site.
type Call struct {
	Callee   string
	Line     int // 1-indexed
	IsMethod bool
}

// Impl is one extracted trait/interface implementation.
type Impl struct {
	TypeName  string
	TraitName string
}

// FFIMarker is one extracted foreign-function-interface boundary.
type FFIMarker struct {
	ABI       string
	StartLine int
	EndLine   int
}

// Extractor pulls the four extraction streams out of a parsed syntax tree
// for one language. Implementations are stateless empty structs that walk
// the syntax tree directly, so they are safe for concurrent use.
type Extractor interface {
	ExtractSymbols(p *ParsedSource) ([]Symbol, error)
	ExtractImports(p *ParsedSource) ([]Import, error)
	ExtractCalls(p *ParsedSource) ([]Call, error)
	ExtractImplementations(p *ParsedSource) ([]Impl, error)
	ExtractFFI(p *ParsedSource) ([]FFIMarker, error)
}

// ExtractorFor returns the singleton Extractor for lang, or nil if
// unsupported.
func ExtractorFor(lang Language) Extractor {
	switch lang {
	case LangRust:
		return rustExtractor{}
	case LangPython:
		return pythonExtractor{}
	case LangC:
		return cExtractor{}
	case LangCpp:
		return cppExtractor{}
	case LangGo:
		return goExtractor{}
	default:
		return nil
	}
}

// walk calls fn on node and, depth-first, on its descendants; callers
// control recursion via the returned descend flag (false skips the node's
// children).
func walk(node *sitter.Node, fn func(n *sitter.Node) (descend bool)) {
	if node == nil {
		return
	}
	descend := fn(node)
	if !descend {
		return
	}
	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		walk(node.Child(i), fn)
	}
}

func nodeLine1(node *sitter.Node) int {
	return int(node.StartPoint().Row) + 1
}

func nodeEndLine1(node *sitter.Node) int {
	return int(node.EndPoint().Row) + 1
}
