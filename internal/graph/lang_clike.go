package graph

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// cExtractor and cppExtractor implement Extractor for C and C++ sources
// respectively, sharing the clike* helpers below. The upstream extraction
// engine this design is ported from never finished C/C++ support; these
// two languages are implemented directly against spec prose and the
// tree-sitter-c / tree-sitter-cpp grammars rather than transliterated
// from a reference extractor.
type cExtractor struct{}
type cppExtractor struct{}

func (cExtractor) ExtractSymbols(p *ParsedSource) ([]Symbol, error) {
	return clikeSymbols(p, false), nil
}

func (cppExtractor) ExtractSymbols(p *ParsedSource) ([]Symbol, error) {
	return clikeSymbols(p, true), nil
}

func clikeSymbols(p *ParsedSource, cpp bool) []Symbol {
	var symbols []Symbol
	path := p.Path

	walk(p.RootNode(), func(n *sitter.Node) bool {
		switch n.Type() {
		case "function_definition":
			symbols = append(symbols, clikeFunctionSymbol(p, n, path, ""))
			return false
		case "struct_specifier", "union_specifier":
			if nameNode := n.ChildByFieldName("name"); nameNode != nil {
				symbols = append(symbols, clikeTypeSymbol(p, n, KindStruct, path))
			}
		case "enum_specifier":
			if nameNode := n.ChildByFieldName("name"); nameNode != nil {
				symbols = append(symbols, clikeTypeSymbol(p, n, KindEnum, path))
			}
		case "type_definition":
			symbols = append(symbols, clikeTypedefSymbol(p, n, path))
			return false
		case "class_specifier":
			if cpp {
				cls := clikeTypeSymbol(p, n, KindClass, path)
				symbols = append(symbols, cls)
				appendClassMembers(p, n, cls.Name, path, &symbols)
				return false
			}
		}
		return true
	})
	return symbols
}

func appendClassMembers(p *ParsedSource, classNode *sitter.Node, className, path string, out *[]Symbol) {
	body := classNode.ChildByFieldName("body")
	if body == nil {
		return
	}
	vis := Private
	count := int(body.NamedChildCount())
	for i := 0; i < count; i++ {
		member := body.NamedChild(i)
		switch member.Type() {
		case "access_specifier":
			switch p.NodeText(member) {
			case "public":
				vis = Public
			case "protected":
				vis = Restricted("protected")
			case "private":
				vis = Private
			}
		case "function_definition":
			sym := clikeFunctionSymbol(p, member, path, className)
			sym = sym.WithVisibility(vis)
			*out = append(*out, sym)
		}
	}
}

func clikeFunctionSymbol(p *ParsedSource, n *sitter.Node, path, className string) Symbol {
	name := clikeDeclaratorName(p, n.ChildByFieldName("declarator"))
	if name == "" {
		name = "<anonymous>"
	}
	kind := KindFunction
	if className != "" {
		kind = KindMethod
	}
	sym := NewSymbol(name, kind, path, nodeLine1(n), nodeEndLine1(n))
	sym = sym.WithSignature(clikeSignature(p, n))
	sym = sym.WithVisibility(clikeLinkageVisibility(n))
	if className != "" {
		sym = sym.WithQualifiedName(className + "::" + name)
	}
	if doc := clikeDocComment(p, n); doc != "" {
		sym = sym.WithDocComment(doc)
	}
	return sym
}

func clikeDeclaratorName(p *ParsedSource, decl *sitter.Node) string {
	for decl != nil {
		switch decl.Type() {
		case "identifier", "field_identifier", "type_identifier", "destructor_name", "operator_name":
			return p.NodeText(decl)
		case "function_declarator":
			decl = decl.ChildByFieldName("declarator")
		case "pointer_declarator", "reference_declarator":
			decl = decl.ChildByFieldName("declarator")
		case "qualified_identifier":
			if name := decl.ChildByFieldName("name"); name != nil {
				decl = name
				continue
			}
			return p.NodeText(decl)
		default:
			return p.NodeText(decl)
		}
	}
	return ""
}

func clikeTypeSymbol(p *ParsedSource, n *sitter.Node, kind SymbolKind, path string) Symbol {
	name := "<anonymous>"
	if nameNode := n.ChildByFieldName("name"); nameNode != nil {
		name = p.NodeText(nameNode)
	}
	sym := NewSymbol(name, kind, path, nodeLine1(n), nodeEndLine1(n))
	sym = sym.WithVisibility(Public)
	if doc := clikeDocComment(p, n); doc != "" {
		sym = sym.WithDocComment(doc)
	}
	return sym
}

func clikeTypedefSymbol(p *ParsedSource, n *sitter.Node, path string) Symbol {
	declNode := n.ChildByFieldName("declarator")
	name := clikeDeclaratorName(p, declNode)
	if name == "" {
		name = "<anonymous>"
	}
	sym := NewSymbol(name, KindType, path, nodeLine1(n), nodeEndLine1(n))
	sym = sym.WithSignature(strings.TrimSpace(strings.Join(strings.Fields(p.NodeText(n)), " ")))
	sym = sym.WithVisibility(Public)
	if doc := clikeDocComment(p, n); doc != "" {
		sym = sym.WithDocComment(doc)
	}
	return sym
}

func clikeSignature(p *ParsedSource, n *sitter.Node) string {
	body := n.ChildByFieldName("body")
	text := p.NodeText(n)
	if body != nil {
		bodyStart := int(body.StartByte()) - int(n.StartByte())
		if bodyStart > 0 && bodyStart < len(text) {
			text = text[:bodyStart]
		}
	}
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}

// clikeLinkageVisibility maps C/C++'s only file-scope access control —
// the "static" storage-class specifier giving internal linkage — onto
// Private, with everything else Public.
func clikeLinkageVisibility(n *sitter.Node) Visibility {
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if child != nil && child.Type() == "storage_class_specifier" {
			return Private
		}
		if child == n.ChildByFieldName("declarator") {
			break
		}
	}
	return Public
}

// clikeDocComment walks backwards over an unbroken run of line or block
// comments immediately preceding decl (no blank line in between),
// stripping leading "//" or "/*"+"*"-gutter markers.
func clikeDocComment(p *ParsedSource, decl *sitter.Node) string {
	var lines []string
	cur := decl.PrevSibling()
	lastLine := decl.StartPoint().Row
	for cur != nil && cur.Type() == "comment" {
		if int(lastLine)-int(cur.EndPoint().Row) > 1 {
			break
		}
		text := p.NodeText(cur)
		lines = append([]string{cleanClikeComment(text)}, lines...)
		lastLine = cur.StartPoint().Row
		cur = cur.PrevSibling()
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func cleanClikeComment(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "/*") {
		text = strings.TrimPrefix(text, "/*")
		text = strings.TrimSuffix(text, "*/")
		var out []string
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			line = strings.TrimPrefix(line, "*")
			out = append(out, strings.TrimSpace(line))
		}
		return strings.TrimSpace(strings.Join(out, "\n"))
	}
	return strings.TrimSpace(strings.TrimPrefix(text, "//"))
}

func clikeImports(p *ParsedSource) []Import {
	var imports []Import
	walk(p.RootNode(), func(n *sitter.Node) bool {
		if n.Type() == "preproc_include" {
			if pathNode := n.ChildByFieldName("path"); pathNode != nil {
				text := p.NodeText(pathNode)
				text = strings.Trim(text, "\"<>")
				imports = append(imports, Import{Path: text})
			}
			return false
		}
		return true
	})
	return imports
}

func clikeCalls(p *ParsedSource) []Call {
	var calls []Call
	walk(p.RootNode(), func(n *sitter.Node) bool {
		if n.Type() == "call_expression" {
			fn := n.ChildByFieldName("function")
			if fn != nil {
				callee, isMethod := clikeCalleeFromFunctionNode(p, fn)
				if callee != "" {
					calls = append(calls, Call{Callee: callee, Line: nodeLine1(n), IsMethod: isMethod})
				}
			}
		}
		return true
	})
	return calls
}

func clikeCalleeFromFunctionNode(p *ParsedSource, fn *sitter.Node) (string, bool) {
	switch fn.Type() {
	case "field_expression":
		field := fn.ChildByFieldName("field")
		if field != nil {
			return p.NodeText(field), true
		}
		return "", false
	case "identifier", "field_identifier":
		return p.NodeText(fn), false
	case "qualified_identifier":
		if name := fn.ChildByFieldName("name"); name != nil {
			return p.NodeText(name), false
		}
		return p.NodeText(fn), false
	default:
		return p.NodeText(fn), false
	}
}

func (cExtractor) ExtractImports(p *ParsedSource) ([]Import, error) { return clikeImports(p), nil }
func (cppExtractor) ExtractImports(p *ParsedSource) ([]Import, error) { return clikeImports(p), nil }

func (cExtractor) ExtractCalls(p *ParsedSource) ([]Call, error) { return clikeCalls(p), nil }
func (cppExtractor) ExtractCalls(p *ParsedSource) ([]Call, error) { return clikeCalls(p), nil }

// ExtractImplementations reports C++ base-class lists (class Derived :
// public Base); C has no inheritance concept so it always returns nil.
func (cExtractor) ExtractImplementations(p *ParsedSource) ([]Impl, error) { return nil, nil }

func (cppExtractor) ExtractImplementations(p *ParsedSource) ([]Impl, error) {
	var impls []Impl
	walk(p.RootNode(), func(n *sitter.Node) bool {
		if n.Type() == "class_specifier" {
			nameNode := n.ChildByFieldName("name")
			if nameNode == nil {
				return true
			}
			typeName := p.NodeText(nameNode)
			if bases := findChildOfType(n, "base_class_clause"); bases != nil {
				count := int(bases.NamedChildCount())
				for i := 0; i < count; i++ {
					base := bases.NamedChild(i)
					if base.Type() != "type_identifier" && base.Type() != "qualified_identifier" {
						continue
					}
					impls = append(impls, Impl{TypeName: typeName, TraitName: clikeBaseName(p.NodeText(base))})
				}
			}
		}
		return true
	})
	return impls, nil
}

func clikeBaseName(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndex(s, "::"); idx >= 0 {
		s = s[idx+2:]
	}
	return s
}

// ExtractFFI reports extern "C" linkage specifications, the C++ FFI
// boundary; plain C has no such marker so it always returns nil.
func (cExtractor) ExtractFFI(p *ParsedSource) ([]FFIMarker, error) { return nil, nil }

func (cppExtractor) ExtractFFI(p *ParsedSource) ([]FFIMarker, error) {
	var markers []FFIMarker
	walk(p.RootNode(), func(n *sitter.Node) bool {
		if n.Type() == "linkage_specification" {
			abi := "C"
			if lit := findChildOfType(n, "string_literal"); lit != nil {
				abi = stripQuoteDelimiters(p.NodeText(lit))
			}
			markers = append(markers, FFIMarker{ABI: abi, StartLine: nodeLine1(n), EndLine: nodeEndLine1(n)})
			return false
		}
		return true
	})
	return markers, nil
}
