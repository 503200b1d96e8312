package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
)

// Language identifies a supported source language.
type Language string

const (
	LangRust   Language = "rust"
	LangPython Language = "python"
	LangC      Language = "c"
	LangCpp    Language = "cpp"
	LangGo     Language = "go"
)

// LanguageFromExtension detects a Language from a bare file extension
// (without the leading dot), case-insensitively.
func LanguageFromExtension(ext string) (Language, bool) {
	switch strings.ToLower(ext) {
	case "rs":
		return LangRust, true
	case "py", "pyi":
		return LangPython, true
	case "c", "h":
		return LangC, true
	case "cpp", "cc", "cxx", "c++", "hpp", "hh", "hxx", "h++":
		return LangCpp, true
	case "go":
		return LangGo, true
	default:
		return "", false
	}
}

// LanguageFromPath detects a Language from a file path's extension.
func LanguageFromPath(path string) (Language, bool) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", false
	}
	return LanguageFromExtension(ext)
}

func sitterLanguage(lang Language) *sitter.Language {
	switch lang {
	case LangRust:
		return rust.GetLanguage()
	case LangPython:
		return python.GetLanguage()
	case LangC:
		return c.GetLanguage()
	case LangCpp:
		return cpp.GetLanguage()
	case LangGo:
		return golang.GetLanguage()
	default:
		return nil
	}
}

// SupportedExtensions lists every extension recognized by LanguageFromExtension.
func SupportedExtensions() []string {
	return []string{"rs", "py", "pyi", "c", "h", "cpp", "cc", "cxx", "c++", "hpp", "hh", "hxx", "h++", "go"}
}

// ParsedSource holds an opaque syntax tree, the language tag, the owned
// source text, and the originating path (if any). The source text's
// lifetime always covers the tree's lifetime since both are owned here.
type ParsedSource struct {
	Language Language
	Tree     *sitter.Tree
	Source   []byte
	Path     string
}

// NodeText returns the source text spanned by node.
func (p *ParsedSource) NodeText(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return node.Content(p.Source)
}

// RootNode returns the syntax tree's root.
func (p *ParsedSource) RootNode() *sitter.Node {
	return p.Tree.RootNode()
}

// Parser parses source files into ParsedSource values. It is safe for
// concurrent use; each call to ParseFile/ParseSource creates its own
// tree-sitter parser instance since sitter.Parser is not itself safe to
// share across goroutines.
type Parser struct {
	mu sync.Mutex
}

func NewParser() *Parser {
	return &Parser{}
}

// ParseFile reads and parses a file from disk, detecting its language from
// the extension.
func (p *Parser) ParseFile(path string) (*ParsedSource, error) {
	lang, ok := LanguageFromPath(path)
	if !ok {
		return nil, fmt.Errorf("unsupported file extension: %s", filepath.Ext(path))
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	parsed, err := p.ParseSource(source, lang)
	if err != nil {
		return nil, err
	}
	parsed.Path = path
	return parsed, nil
}

// ParseSource parses raw source bytes as the given language.
func (p *Parser) ParseSource(source []byte, lang Language) (*ParsedSource, error) {
	tsLang := sitterLanguage(lang)
	if tsLang == nil {
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tsParser := sitter.NewParser()
	tsParser.SetLanguage(tsLang)
	tree, err := tsParser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing source as %s: %w", lang, err)
	}
	return &ParsedSource{Language: lang, Tree: tree, Source: source}, nil
}
