package graph

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// rustExtractor implements Extractor for Rust sources using the grammar
// shapes documented at https://github.com/tree-sitter/tree-sitter-rust:
// function_item/struct_item/enum_item/trait_item/impl_item/mod_item for
// symbols, use_declaration for imports, call_expression for calls,
// impl_item with a "trait" field for trait implementations, and
// foreign_mod_item/extern function signatures for FFI boundaries.
type rustExtractor struct{}

var rustDocMarkers = []string{"///", "//!"}
var rustAttrPrefixes = []string{"#["}

func (rustExtractor) ExtractSymbols(p *ParsedSource) ([]Symbol, error) {
	var symbols []Symbol
	path := p.Path

	walk(p.RootNode(), func(n *sitter.Node) bool {
		switch n.Type() {
		case "function_item", "function_signature_item":
			symbols = append(symbols, rustSymbolFromNamed(p, n, KindFunction, path))
		case "struct_item":
			symbols = append(symbols, rustSymbolFromNamed(p, n, KindStruct, path))
		case "enum_item":
			symbols = append(symbols, rustSymbolFromNamed(p, n, KindEnum, path))
		case "trait_item":
			symbols = append(symbols, rustSymbolFromNamed(p, n, KindInterface, path))
		case "mod_item":
			symbols = append(symbols, rustSymbolFromNamed(p, n, KindModule, path))
		case "impl_item":
			appendRustImplMethods(p, n, path, &symbols)
			return true
		}
		return true
	})
	return symbols, nil
}

func appendRustImplMethods(p *ParsedSource, implNode *sitter.Node, path string, out *[]Symbol) {
	typeNode := implNode.ChildByFieldName("type")
	typeName := ""
	if typeNode != nil {
		typeName = strings.TrimSpace(p.NodeText(typeNode))
	}
	body := implNode.ChildByFieldName("body")
	if body == nil {
		return
	}
	count := int(body.NamedChildCount())
	for i := 0; i < count; i++ {
		item := body.NamedChild(i)
		if item == nil || item.Type() != "function_item" {
			continue
		}
		sym := rustSymbolFromNamed(p, item, KindMethod, path)
		if typeName != "" {
			sym = sym.WithQualifiedName(typeName + "::" + sym.Name)
		}
		*out = append(*out, sym)
	}
}

func rustSymbolFromNamed(p *ParsedSource, n *sitter.Node, kind SymbolKind, path string) Symbol {
	nameNode := n.ChildByFieldName("name")
	name := "<anonymous>"
	if nameNode != nil {
		name = p.NodeText(nameNode)
	}
	sym := NewSymbol(name, kind, path, nodeLine1(n), nodeEndLine1(n))
	sym = sym.WithSignature(rustSignature(p, n))

	if vis := findChildOfType(n, "visibility_modifier"); vis != nil {
		sym = sym.WithVisibility(rustVisibility(p.NodeText(vis)))
	} else {
		sym = sym.WithVisibility(Private)
	}

	if doc := docCommentLineStyle(p, n, rustDocMarkers, rustAttrPrefixes); doc != "" {
		sym = sym.WithDocComment(doc)
	}
	return sym
}

func rustSignature(p *ParsedSource, n *sitter.Node) string {
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

func (rustExtractor) ExtractImports(p *ParsedSource) ([]Import, error) {
	var imports []Import
	walk(p.RootNode(), func(n *sitter.Node) bool {
		if n.Type() == "use_declaration" {
			arg := n.ChildByFieldName("argument")
			if arg != nil {
				imports = append(imports, flattenUseTree(p, arg)...)
			}
			return false
		}
		return true
	})
	return imports, nil
}

func flattenUseTree(p *ParsedSource, n *sitter.Node) []Import {
	switch n.Type() {
	case "use_as_clause":
		path := p.NodeText(n.ChildByFieldName("path"))
		alias := p.NodeText(n.ChildByFieldName("alias"))
		return []Import{{Path: path, Alias: alias}}
	case "use_list":
		var out []Import
		count := int(n.NamedChildCount())
		for i := 0; i < count; i++ {
			out = append(out, flattenUseTree(p, n.NamedChild(i))...)
		}
		return out
	case "scoped_use_list":
		prefix := ""
		if path := n.ChildByFieldName("path"); path != nil {
			prefix = p.NodeText(path) + "::"
		}
		list := findChildOfType(n, "use_list")
		var out []Import
		if list != nil {
			count := int(list.NamedChildCount())
			for i := 0; i < count; i++ {
				for _, imp := range flattenUseTree(p, list.NamedChild(i)) {
					imp.Path = prefix + imp.Path
					out = append(out, imp)
				}
			}
		}
		return out
	case "use_wildcard":
		return []Import{{Path: strings.TrimSuffix(p.NodeText(n), "::*") + "::*"}}
	default:
		return []Import{{Path: p.NodeText(n)}}
	}
}

func (rustExtractor) ExtractCalls(p *ParsedSource) ([]Call, error) {
	var calls []Call
	walk(p.RootNode(), func(n *sitter.Node) bool {
		if n.Type() == "call_expression" {
			fn := n.ChildByFieldName("function")
			if fn != nil {
				callee, isMethod := rustCalleeFromFunctionNode(p, fn)
				if callee != "" {
					calls = append(calls, Call{Callee: callee, Line: nodeLine1(n), IsMethod: isMethod})
				}
			}
		}
		return true
	})
	return calls, nil
}

func rustCalleeFromFunctionNode(p *ParsedSource, fn *sitter.Node) (string, bool) {
	switch fn.Type() {
	case "field_expression":
		field := fn.ChildByFieldName("field")
		if field != nil {
			return p.NodeText(field), true
		}
		return "", false
	case "scoped_identifier":
		name := fn.ChildByFieldName("name")
		if name != nil {
			return p.NodeText(name), false
		}
		return p.NodeText(fn), false
	case "identifier":
		return p.NodeText(fn), false
	default:
		return p.NodeText(fn), false
	}
}

func (rustExtractor) ExtractImplementations(p *ParsedSource) ([]Impl, error) {
	var impls []Impl
	walk(p.RootNode(), func(n *sitter.Node) bool {
		if n.Type() == "impl_item" {
			traitNode := n.ChildByFieldName("trait")
			typeNode := n.ChildByFieldName("type")
			if traitNode != nil && typeNode != nil {
				impls = append(impls, Impl{
					TypeName:  strings.TrimSpace(p.NodeText(typeNode)),
					TraitName: rustBaseTypeName(p.NodeText(traitNode)),
				})
			}
		}
		return true
	})
	return impls, nil
}

func rustBaseTypeName(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '<'); idx >= 0 {
		s = s[:idx]
	}
	if idx := strings.LastIndex(s, "::"); idx >= 0 {
		s = s[idx+2:]
	}
	return s
}

func (rustExtractor) ExtractFFI(p *ParsedSource) ([]FFIMarker, error) {
	var markers []FFIMarker
	walk(p.RootNode(), func(n *sitter.Node) bool {
		switch n.Type() {
		case "foreign_mod_item":
			abi := "C"
			if a := n.ChildByFieldName("abi"); a != nil {
				abi = stripQuoteDelimiters(p.NodeText(a))
			}
			markers = append(markers, FFIMarker{ABI: abi, StartLine: nodeLine1(n), EndLine: nodeEndLine1(n)})
			return false
		case "function_item":
			if em := findChildOfType(n, "extern_modifier"); em != nil {
				abi := "C"
				if s := findChildOfType(em, "string_literal"); s != nil {
					abi = stripQuoteDelimiters(p.NodeText(s))
				}
				markers = append(markers, FFIMarker{ABI: abi, StartLine: nodeLine1(n), EndLine: nodeEndLine1(n)})
			}
		}
		return true
	})
	return markers, nil
}
