package graph

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// docCommentLineStyle walks backwards from node over sibling line comments
// matching one of markers (the Rust extractor passes "///" and "//!"),
// crossing siblings that start with one of attributeLinePrefixes without
// breaking the run, and concatenates the matched lines in source order.
func docCommentLineStyle(p *ParsedSource, node *sitter.Node, markers []string, attributeLinePrefixes []string) string {
	var lines []string
	cur := node.PrevSibling()
	for cur != nil {
		text := strings.TrimSpace(p.NodeText(cur))
		if isLineComment(cur) {
			matched := false
			for _, m := range markers {
				if strings.HasPrefix(text, m) {
					lines = append([]string{strings.TrimSpace(strings.TrimPrefix(text, m))}, lines...)
					matched = true
					break
				}
			}
			if !matched {
				break
			}
			cur = cur.PrevSibling()
			continue
		}
		crossed := false
		for _, pfx := range attributeLinePrefixes {
			if strings.HasPrefix(text, pfx) {
				crossed = true
				break
			}
		}
		if crossed {
			cur = cur.PrevSibling()
			continue
		}
		break
	}
	return strings.Join(lines, "\n")
}

func isLineComment(n *sitter.Node) bool {
	switch n.Type() {
	case "line_comment", "comment":
		return true
	default:
		return false
	}
}

// docCommentIndentBased extracts the first string-literal statement of a
// body as a docstring, stripping matching triple- or single-quote
// delimiters, the convention used by Python.
func docCommentIndentBased(p *ParsedSource, body *sitter.Node) string {
	if body == nil {
		return ""
	}
	count := int(body.NamedChildCount())
	for i := 0; i < count; i++ {
		child := body.NamedChild(i)
		if child == nil {
			continue
		}
		if child.Type() != "expression_statement" {
			return ""
		}
		if int(child.NamedChildCount()) == 0 {
			return ""
		}
		inner := child.NamedChild(0)
		if inner.Type() != "string" {
			return ""
		}
		return stripQuoteDelimiters(p.NodeText(inner))
	}
	return ""
}

func stripQuoteDelimiters(s string) string {
	for _, delim := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, delim) && strings.HasSuffix(s, delim) && len(s) >= 2*len(delim) {
			return strings.TrimSpace(s[len(delim) : len(s)-len(delim)])
		}
	}
	return strings.TrimSpace(s)
}

// indentVisibility applies the Python-style naming rule: exactly one
// leading underscore (not dunder), or a double-leading-underscore name
// that does not also end with a double trailing underscore, is Private;
// everything else is Public.
func indentVisibility(name string) Visibility {
	if strings.HasPrefix(name, "__") && !strings.HasSuffix(name, "__") {
		return Private
	}
	if strings.HasPrefix(name, "_") && !strings.HasPrefix(name, "__") {
		return Private
	}
	return Public
}

// rustVisibility parses a Rust visibility_modifier node's text per the
// pub / pub(crate) / pub(super) / pub(in X) / pub(self) / absent mapping.
func rustVisibility(modifierText string) Visibility {
	if modifierText == "" {
		return Private
	}
	if modifierText == "pub" {
		return Public
	}
	inner := strings.TrimPrefix(modifierText, "pub(")
	inner = strings.TrimSuffix(inner, ")")
	switch {
	case inner == "crate":
		return Crate
	case inner == "super":
		return Restricted("super")
	case inner == "self":
		return Restricted("self")
	case strings.HasPrefix(inner, "in "):
		return Restricted(strings.TrimSpace(strings.TrimPrefix(inner, "in ")))
	default:
		return Private
	}
}

func findChildOfType(node *sitter.Node, typ string) *sitter.Node {
	if node == nil {
		return nil
	}
	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		child := node.Child(i)
		if child != nil && child.Type() == typ {
			return child
		}
	}
	return nil
}

func lineRangeEnclosesMatching(symbols []Symbol, line int) *Symbol {
	for i := range symbols {
		s := &symbols[i]
		if s.Kind.IsCallable() && s.StartLine <= line && line <= s.EndLine {
			return s
		}
	}
	return nil
}
