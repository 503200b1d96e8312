package graph

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// pythonExtractor implements Extractor for Python sources using the
// grammar shapes of https://github.com/tree-sitter/tree-sitter-python:
// function_definition/class_definition for symbols (unwrapping any
// enclosing decorated_definition), import_statement/import_from_statement
// for imports, call for calls, and the single/double leading-underscore
// naming convention for visibility since Python has no access modifiers.
type pythonExtractor struct{}

func (pythonExtractor) ExtractSymbols(p *ParsedSource) ([]Symbol, error) {
	var symbols []Symbol
	path := p.Path

	var visit func(n *sitter.Node, enclosingClass string)
	visit = func(n *sitter.Node, enclosingClass string) {
		if n == nil {
			return
		}
		target := n
		if n.Type() == "decorated_definition" {
			if def := n.ChildByFieldName("definition"); def != nil {
				target = def
			}
		}

		switch target.Type() {
		case "function_definition":
			kind := KindFunction
			if enclosingClass != "" {
				kind = KindMethod
			}
			sym := pythonSymbolFromDef(p, n, target, kind, path)
			if enclosingClass != "" {
				sym = sym.WithQualifiedName(enclosingClass + "." + sym.Name)
			}
			symbols = append(symbols, sym)
			return
		case "class_definition":
			sym := pythonSymbolFromDef(p, n, target, KindClass, path)
			symbols = append(symbols, sym)
			body := target.ChildByFieldName("body")
			if body != nil {
				count := int(body.NamedChildCount())
				for i := 0; i < count; i++ {
					visit(body.NamedChild(i), sym.Name)
				}
			}
			return
		}

		count := int(target.NamedChildCount())
		for i := 0; i < count; i++ {
			visit(target.NamedChild(i), enclosingClass)
		}
	}

	visit(p.RootNode(), "")
	return symbols, nil
}

func pythonSymbolFromDef(p *ParsedSource, outer, def *sitter.Node, kind SymbolKind, path string) Symbol {
	nameNode := def.ChildByFieldName("name")
	name := "<anonymous>"
	if nameNode != nil {
		name = p.NodeText(nameNode)
	}
	sym := NewSymbol(name, kind, path, nodeLine1(outer), nodeEndLine1(outer))
	sym = sym.WithSignature(pythonSignature(p, def))
	sym = sym.WithVisibility(indentVisibility(name))
	if doc := docCommentIndentBased(p, def.ChildByFieldName("body")); doc != "" {
		sym = sym.WithDocComment(doc)
	}
	return sym
}

func pythonSignature(p *ParsedSource, def *sitter.Node) string {
	body := def.ChildByFieldName("body")
	text := p.NodeText(def)
	if body != nil {
		bodyStart := int(body.StartByte()) - int(def.StartByte())
		if bodyStart > 0 && bodyStart < len(text) {
			text = text[:bodyStart]
		}
	}
	text = strings.TrimRight(strings.TrimSpace(text), ":")
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}

func (pythonExtractor) ExtractImports(p *ParsedSource) ([]Import, error) {
	var imports []Import
	walk(p.RootNode(), func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_statement":
			count := int(n.NamedChildCount())
			for i := 0; i < count; i++ {
				child := n.NamedChild(i)
				imports = append(imports, pythonImportFromName(p, child)...)
			}
			return false
		case "import_from_statement":
			moduleNode := n.ChildByFieldName("module_name")
			module := ""
			if moduleNode != nil {
				module = p.NodeText(moduleNode)
			}
			count := int(n.NamedChildCount())
			for i := 0; i < count; i++ {
				child := n.NamedChild(i)
				if child == moduleNode {
					continue
				}
				for _, imp := range pythonImportFromName(p, child) {
					if imp.Path == "*" {
						imports = append(imports, Import{Path: module + ".*"})
						continue
					}
					imports = append(imports, Import{Path: module + "." + imp.Path, Alias: imp.Alias})
				}
			}
			return false
		}
		return true
	})
	return imports, nil
}

func pythonImportFromName(p *ParsedSource, n *sitter.Node) []Import {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "aliased_import":
		name := n.ChildByFieldName("name")
		alias := n.ChildByFieldName("alias")
		path := ""
		if name != nil {
			path = p.NodeText(name)
		}
		aliasText := ""
		if alias != nil {
			aliasText = p.NodeText(alias)
		}
		return []Import{{Path: path, Alias: aliasText}}
	case "dotted_name", "identifier":
		return []Import{{Path: p.NodeText(n)}}
	case "wildcard_import":
		return []Import{{Path: "*"}}
	default:
		return []Import{{Path: p.NodeText(n)}}
	}
}

func (pythonExtractor) ExtractCalls(p *ParsedSource) ([]Call, error) {
	var calls []Call
	walk(p.RootNode(), func(n *sitter.Node) bool {
		if n.Type() == "call" {
			fn := n.ChildByFieldName("function")
			if fn != nil {
				callee, isMethod := pythonCalleeFromFunctionNode(p, fn)
				if callee != "" {
					calls = append(calls, Call{Callee: callee, Line: nodeLine1(n), IsMethod: isMethod})
				}
			}
		}
		return true
	})
	return calls, nil
}

func pythonCalleeFromFunctionNode(p *ParsedSource, fn *sitter.Node) (string, bool) {
	switch fn.Type() {
	case "attribute":
		attr := fn.ChildByFieldName("attribute")
		if attr != nil {
			return p.NodeText(attr), true
		}
		return "", false
	case "identifier":
		return p.NodeText(fn), false
	default:
		return p.NodeText(fn), false
	}
}

// ExtractImplementations reports base-class relationships captured via a
// class_definition's superclasses argument_list, one Impl per base.
func (pythonExtractor) ExtractImplementations(p *ParsedSource) ([]Impl, error) {
	var impls []Impl
	walk(p.RootNode(), func(n *sitter.Node) bool {
		if n.Type() == "class_definition" {
			nameNode := n.ChildByFieldName("name")
			if nameNode == nil {
				return true
			}
			typeName := p.NodeText(nameNode)
			if bases := n.ChildByFieldName("superclasses"); bases != nil {
				count := int(bases.NamedChildCount())
				for i := 0; i < count; i++ {
					base := bases.NamedChild(i)
					if base.Type() == "keyword_argument" {
						continue
					}
					impls = append(impls, Impl{TypeName: typeName, TraitName: pythonBaseName(p.NodeText(base))})
				}
			}
		}
		return true
	})
	return impls, nil
}

func pythonBaseName(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndex(s, "."); idx >= 0 {
		s = s[idx+1:]
	}
	return s
}

// ExtractFFI reports ctypes-style foreign library load calls
// (ctypes.CDLL(...), ctypes.cdll.LoadLibrary(...)) as single-line markers
// since Python has no syntactic FFI boundary of its own.
func (pythonExtractor) ExtractFFI(p *ParsedSource) ([]FFIMarker, error) {
	var markers []FFIMarker
	walk(p.RootNode(), func(n *sitter.Node) bool {
		if n.Type() == "call" {
			fn := n.ChildByFieldName("function")
			if fn != nil {
				text := p.NodeText(fn)
				if strings.Contains(text, "CDLL") || strings.Contains(text, "LoadLibrary") || strings.Contains(text, "PyDLL") {
					markers = append(markers, FFIMarker{ABI: "C", StartLine: nodeLine1(n), EndLine: nodeEndLine1(n)})
				}
			}
		}
		return true
	})
	return markers, nil
}
