// Package graph implements the language-agnostic code symbol and edge model,
// the sqlite-backed graph store, the per-language extraction pipeline, and
// the incremental builder and watcher that keep the store in sync with a
// source tree.
package graph

import (
	"fmt"
	"strings"
)

// SymbolKind classifies a code entity. These correspond to the node types
// tracked across every supported language.
type SymbolKind string

const (
	KindFile      SymbolKind = "file"
	KindModule    SymbolKind = "module"
	KindClass     SymbolKind = "class"
	KindStruct    SymbolKind = "struct"
	KindInterface SymbolKind = "interface"
	KindEnum      SymbolKind = "enum"
	KindFunction  SymbolKind = "function"
	KindMethod    SymbolKind = "method"
	KindVariable  SymbolKind = "variable"
	KindType      SymbolKind = "type"
	KindMacro     SymbolKind = "macro"
)

// IsTypeDefinition reports whether this symbol kind represents a type
// definition rather than a value or callable.
func (k SymbolKind) IsTypeDefinition() bool {
	switch k {
	case KindClass, KindStruct, KindInterface, KindEnum, KindType:
		return true
	default:
		return false
	}
}

// IsCallable reports whether this symbol kind can appear as the caller side
// of a Calls edge.
func (k SymbolKind) IsCallable() bool {
	switch k {
	case KindFunction, KindMethod, KindMacro:
		return true
	default:
		return false
	}
}

// Visibility is the normalized accessibility of a symbol across languages
// with differing visibility models.
type Visibility struct {
	Kind VisibilityKind
	// Path holds the restriction target for VisibilityRestricted (e.g. the
	// module path in `pub(in path)`); empty for all other kinds.
	Path string
}

type VisibilityKind string

const (
	VisibilityPublic     VisibilityKind = "public"
	VisibilityPrivate    VisibilityKind = "private"
	VisibilityCrate      VisibilityKind = "crate"
	VisibilityRestricted VisibilityKind = "restricted"
)

// Public, Private and Crate are the zero-argument visibility values; use
// Restricted(path) for the parameterized case.
var (
	Public  = Visibility{Kind: VisibilityPublic}
	Private = Visibility{Kind: VisibilityPrivate}
	Crate   = Visibility{Kind: VisibilityCrate}
)

func Restricted(path string) Visibility {
	return Visibility{Kind: VisibilityRestricted, Path: path}
}

func (v Visibility) String() string {
	if v.Kind == VisibilityRestricted {
		return fmt.Sprintf("restricted(%s)", v.Path)
	}
	return string(v.Kind)
}

// Symbol is a named code entity extracted from source, with its location,
// type information, and metadata.
type Symbol struct {
	Name          string
	Kind          SymbolKind
	FilePath      string
	StartLine     int // 1-indexed
	EndLine       int // 1-indexed, inclusive
	Signature     string
	QualifiedName string
	DocComment    string
	Visibility    Visibility
}

// NewSymbol constructs a Symbol with the required fields and Private
// visibility; use the With* setters for the optional fields.
func NewSymbol(name string, kind SymbolKind, filePath string, startLine, endLine int) Symbol {
	return Symbol{
		Name:       name,
		Kind:       kind,
		FilePath:   filePath,
		StartLine:  startLine,
		EndLine:    endLine,
		Visibility: Private,
	}
}

func (s Symbol) WithSignature(sig string) Symbol {
	s.Signature = sig
	return s
}

func (s Symbol) WithQualifiedName(qn string) Symbol {
	s.QualifiedName = qn
	return s
}

func (s Symbol) WithDocComment(doc string) Symbol {
	s.DocComment = doc
	return s
}

func (s Symbol) WithVisibility(v Visibility) Symbol {
	s.Visibility = v
	return s
}

var idReplacer = strings.NewReplacer("/", "_", "\\", "_", ".", "_", ":", "_")

// ID computes the symbol's stable identifier: a pure function of its
// sanitized file path, kind, name and start line, using "__" as a
// separator so it never collides with query-language syntax.
func (s Symbol) ID() string {
	safePath := idReplacer.Replace(s.FilePath)
	return fmt.Sprintf("%s__%s__%s__%d", safePath, s.Kind, s.Name, s.StartLine)
}

// LineCount returns the number of lines this symbol spans.
func (s Symbol) LineCount() int {
	if s.EndLine < s.StartLine {
		return 1
	}
	return s.EndLine - s.StartLine + 1
}

// Location renders a "path:start-end" display string.
func (s Symbol) Location() string {
	return fmt.Sprintf("%s:%d-%d", s.FilePath, s.StartLine, s.EndLine)
}
