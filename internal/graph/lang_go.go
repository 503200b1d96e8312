package graph

import (
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
)

// goExtractor implements Extractor for Go sources using the grammar
// shapes of https://github.com/tree-sitter/tree-sitter-go. Go is not
// part of the original extraction language set; it is added so Muninn
// can index its own source tree. Visibility follows Go's exported-name
// convention (capitalized first rune) rather than a keyword modifier,
// and doc comments follow Go's immediately-preceding-line-comment-block
// convention with no intervening blank line.
type goExtractor struct{}

func (goExtractor) ExtractSymbols(p *ParsedSource) ([]Symbol, error) {
	var symbols []Symbol
	path := p.Path

	walk(p.RootNode(), func(n *sitter.Node) bool {
		switch n.Type() {
		case "function_declaration":
			symbols = append(symbols, goSymbolFromDecl(p, n, KindFunction, path, ""))
		case "method_declaration":
			recvType := goReceiverTypeName(p, n)
			symbols = append(symbols, goSymbolFromDecl(p, n, KindMethod, path, recvType))
		case "type_spec":
			kind := goTypeSpecKind(n)
			symbols = append(symbols, goSymbolFromTypeSpec(p, n, kind, path))
			return false
		case "var_spec", "const_spec":
			if n.Parent() != nil && n.Parent().Parent() != nil && n.Parent().Parent().Type() == "source_file" {
				if sym, ok := goSymbolFromValueSpec(p, n, path); ok {
					symbols = append(symbols, sym)
				}
			}
		}
		return true
	})
	return symbols, nil
}

func goReceiverTypeName(p *ParsedSource, n *sitter.Node) string {
	recv := n.ChildByFieldName("receiver")
	if recv == nil || recv.NamedChildCount() == 0 {
		return ""
	}
	param := recv.NamedChild(0)
	typeNode := param.ChildByFieldName("type")
	if typeNode == nil {
		return ""
	}
	text := p.NodeText(typeNode)
	return strings.TrimPrefix(text, "*")
}

func goSymbolFromDecl(p *ParsedSource, n *sitter.Node, kind SymbolKind, path, recvType string) Symbol {
	nameNode := n.ChildByFieldName("name")
	name := "<anonymous>"
	if nameNode != nil {
		name = p.NodeText(nameNode)
	}
	sym := NewSymbol(name, kind, path, nodeLine1(n), nodeEndLine1(n))
	sym = sym.WithSignature(goSignature(p, n))
	sym = sym.WithVisibility(goVisibility(name))
	if recvType != "" {
		sym = sym.WithQualifiedName(recvType + "." + name)
	}
	if doc := goDocComment(p, n); doc != "" {
		sym = sym.WithDocComment(doc)
	}
	return sym
}

func goTypeSpecKind(n *sitter.Node) SymbolKind {
	typeNode := n.ChildByFieldName("type")
	if typeNode == nil {
		return KindType
	}
	switch typeNode.Type() {
	case "struct_type":
		return KindStruct
	case "interface_type":
		return KindInterface
	default:
		return KindType
	}
}

func goSymbolFromTypeSpec(p *ParsedSource, n *sitter.Node, kind SymbolKind, path string) Symbol {
	nameNode := n.ChildByFieldName("name")
	name := "<anonymous>"
	if nameNode != nil {
		name = p.NodeText(nameNode)
	}
	decl := n
	if parent := n.Parent(); parent != nil && parent.Type() == "type_declaration" {
		decl = parent
	}
	sym := NewSymbol(name, kind, path, nodeLine1(n), nodeEndLine1(n))
	sym = sym.WithSignature(strings.TrimSpace(strings.Join(strings.Fields(p.NodeText(n)), " ")))
	sym = sym.WithVisibility(goVisibility(name))
	if doc := goDocComment(p, decl); doc != "" {
		sym = sym.WithDocComment(doc)
	}
	return sym
}

func goSymbolFromValueSpec(p *ParsedSource, n *sitter.Node, path string) (Symbol, bool) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return Symbol{}, false
	}
	name := p.NodeText(nameNode)
	decl := n
	if parent := n.Parent(); parent != nil && (parent.Type() == "var_declaration" || parent.Type() == "const_declaration") {
		decl = parent
	}
	sym := NewSymbol(name, KindVariable, path, nodeLine1(n), nodeEndLine1(n))
	sym = sym.WithVisibility(goVisibility(name))
	if doc := goDocComment(p, decl); doc != "" {
		sym = sym.WithDocComment(doc)
	}
	return sym, true
}

func goSignature(p *ParsedSource, n *sitter.Node) string {
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

func goVisibility(name string) Visibility {
	for _, r := range name {
		if unicode.IsUpper(r) {
			return Public
		}
		break
	}
	return Private
}

// goDocComment walks backwards over an unbroken run of line_comment
// siblings immediately preceding decl, the Go convention for doc comments
// (no blank line may separate the comment block from the declaration).
func goDocComment(p *ParsedSource, decl *sitter.Node) string {
	var lines []string
	cur := decl.PrevSibling()
	lastLine := decl.StartPoint().Row
	for cur != nil && cur.Type() == "comment" {
		if int(lastLine)-int(cur.EndPoint().Row) > 1 {
			break
		}
		text := strings.TrimSpace(p.NodeText(cur))
		text = strings.TrimPrefix(text, "//")
		lines = append([]string{strings.TrimSpace(text)}, lines...)
		lastLine = cur.StartPoint().Row
		cur = cur.PrevSibling()
	}
	return strings.Join(lines, "\n")
}

func (goExtractor) ExtractImports(p *ParsedSource) ([]Import, error) {
	var imports []Import
	walk(p.RootNode(), func(n *sitter.Node) bool {
		if n.Type() == "import_spec" {
			pathNode := n.ChildByFieldName("path")
			nameNode := n.ChildByFieldName("name")
			path := ""
			if pathNode != nil {
				path = stripQuoteDelimiters(p.NodeText(pathNode))
			}
			alias := ""
			if nameNode != nil {
				alias = p.NodeText(nameNode)
			}
			imports = append(imports, Import{Path: path, Alias: alias})
			return false
		}
		return true
	})
	return imports, nil
}

func (goExtractor) ExtractCalls(p *ParsedSource) ([]Call, error) {
	var calls []Call
	walk(p.RootNode(), func(n *sitter.Node) bool {
		if n.Type() == "call_expression" {
			fn := n.ChildByFieldName("function")
			if fn != nil {
				callee, isMethod := goCalleeFromFunctionNode(p, fn)
				if callee != "" {
					calls = append(calls, Call{Callee: callee, Line: nodeLine1(n), IsMethod: isMethod})
				}
			}
		}
		return true
	})
	return calls, nil
}

func goCalleeFromFunctionNode(p *ParsedSource, fn *sitter.Node) (string, bool) {
	switch fn.Type() {
	case "selector_expression":
		field := fn.ChildByFieldName("field")
		if field != nil {
			return p.NodeText(field), true
		}
		return "", false
	case "identifier":
		return p.NodeText(fn), false
	default:
		return p.NodeText(fn), false
	}
}

// ExtractImplementations returns no results: Go's structural interface
// satisfaction has no explicit "implements" syntax to extract, unlike
// Rust's impl-for or Python's base-class list.
func (goExtractor) ExtractImplementations(p *ParsedSource) ([]Impl, error) {
	return nil, nil
}

// ExtractFFI reports cgo boundaries: the `import "C"` pseudo-import and
// any function immediately preceded by a "//export Name" comment.
func (goExtractor) ExtractFFI(p *ParsedSource) ([]FFIMarker, error) {
	var markers []FFIMarker
	walk(p.RootNode(), func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_spec":
			pathNode := n.ChildByFieldName("path")
			if pathNode != nil && stripQuoteDelimiters(p.NodeText(pathNode)) == "C" {
				markers = append(markers, FFIMarker{ABI: "cgo", StartLine: nodeLine1(n), EndLine: nodeEndLine1(n)})
			}
			return false
		case "function_declaration":
			if prev := n.PrevSibling(); prev != nil && prev.Type() == "comment" {
				if strings.HasPrefix(strings.TrimSpace(p.NodeText(prev)), "//export") {
					markers = append(markers, FFIMarker{ABI: "cgo", StartLine: nodeLine1(n), EndLine: nodeEndLine1(n)})
				}
			}
		}
		return true
	})
	return markers, nil
}
