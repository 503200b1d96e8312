package graph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func symbolNames(symbols []Symbol) map[string]Symbol {
	out := make(map[string]Symbol, len(symbols))
	for _, s := range symbols {
		out[s.Name] = s
	}
	return out
}

func TestRustExtractor_Symbols(t *testing.T) {
	src := `
/// Adds two numbers.
pub fn add(a: i32, b: i32) -> i32 {
    a + b
}

struct Point {
    x: i32,
    y: i32,
}

pub trait Shape {
    fn area(&self) -> f64;
}

impl Shape for Point {
    fn area(&self) -> f64 {
        0.0
    }
}
`
	p := NewParser()
	parsed, err := p.ParseSource([]byte(src), LangRust)
	require.NoError(t, err)

	ext := ExtractorFor(LangRust)
	symbols, err := ext.ExtractSymbols(parsed)
	require.NoError(t, err)
	names := symbolNames(symbols)

	require.Contains(t, names, "add")
	require.Equal(t, "public", names["add"].Visibility.String())
	require.Contains(t, names["add"].DocComment, "Adds two numbers")

	require.Contains(t, names, "Point")
	require.Equal(t, "private", names["Point"].Visibility.String())

	require.Contains(t, names, "Shape")
	require.Equal(t, "public", names["Shape"].Visibility.String())

	require.Contains(t, names, "area")

	impls, err := ext.ExtractImplementations(parsed)
	require.NoError(t, err)
	require.Len(t, impls, 1)
	require.Equal(t, "Point", impls[0].TypeName)
	require.Equal(t, "Shape", impls[0].TraitName)
}

func TestRustExtractor_Imports(t *testing.T) {
	src := `
use std::collections::HashMap;
use std::io::{Read, Write};
use serde as s;
`
	p := NewParser()
	parsed, err := p.ParseSource([]byte(src), LangRust)
	require.NoError(t, err)

	ext := ExtractorFor(LangRust)
	imports, err := ext.ExtractImports(parsed)
	require.NoError(t, err)
	require.NotEmpty(t, imports)
}

func TestPythonExtractor_Symbols(t *testing.T) {
	src := `
class Widget:
    """A widget."""

    def render(self):
        return self._paint()

    def _paint(self):
        return "ok"


def _private_helper():
    pass


def public_helper():
    pass
`
	p := NewParser()
	parsed, err := p.ParseSource([]byte(src), LangPython)
	require.NoError(t, err)

	ext := ExtractorFor(LangPython)
	symbols, err := ext.ExtractSymbols(parsed)
	require.NoError(t, err)
	names := symbolNames(symbols)

	require.Contains(t, names, "Widget")
	require.Equal(t, "public", names["Widget"].Visibility.String())
	require.Contains(t, names["Widget"].DocComment, "A widget")

	require.Contains(t, names, "render")
	require.Equal(t, "public", names["render"].Visibility.String())

	require.Contains(t, names, "_paint")
	require.Equal(t, "private", names["_paint"].Visibility.String())

	require.Contains(t, names, "_private_helper")
	require.Equal(t, "private", names["_private_helper"].Visibility.String())

	require.Contains(t, names, "public_helper")
	require.Equal(t, "public", names["public_helper"].Visibility.String())
}

func TestGoExtractor_Symbols(t *testing.T) {
	src := `package sample

// Add sums two ints.
func Add(a, b int) int {
	return a + b
}

func subtract(a, b int) int {
	return a - b
}
`
	p := NewParser()
	parsed, err := p.ParseSource([]byte(src), LangGo)
	require.NoError(t, err)

	ext := ExtractorFor(LangGo)
	symbols, err := ext.ExtractSymbols(parsed)
	require.NoError(t, err)
	names := symbolNames(symbols)

	require.Contains(t, names, "Add")
	require.Equal(t, "public", names["Add"].Visibility.String())
	require.Contains(t, names["Add"].DocComment, "Add sums two ints")

	require.Contains(t, names, "subtract")
	require.Equal(t, "private", names["subtract"].Visibility.String())
}

func TestCExtractor_Symbols(t *testing.T) {
	src := `
static int helper(int x) {
    return x * 2;
}

int compute(int x) {
    return helper(x) + 1;
}
`
	p := NewParser()
	parsed, err := p.ParseSource([]byte(src), LangC)
	require.NoError(t, err)

	ext := ExtractorFor(LangC)
	symbols, err := ext.ExtractSymbols(parsed)
	require.NoError(t, err)
	names := symbolNames(symbols)

	require.Contains(t, names, "helper")
	require.Equal(t, "private", names["helper"].Visibility.String())
	require.Contains(t, names, "compute")
	require.Equal(t, "public", names["compute"].Visibility.String())

	calls, err := ext.ExtractCalls(parsed)
	require.NoError(t, err)
	require.NotEmpty(t, calls)
}

func TestCppExtractor_Implementations(t *testing.T) {
	src := `
class Base {
public:
    virtual void speak() = 0;
};

class Derived : public Base {
public:
    void speak() override {}
};
`
	p := NewParser()
	parsed, err := p.ParseSource([]byte(src), LangCpp)
	require.NoError(t, err)

	ext := ExtractorFor(LangCpp)
	impls, err := ext.ExtractImplementations(parsed)
	require.NoError(t, err)
	require.Len(t, impls, 1)
	require.Equal(t, "Derived", impls[0].TypeName)
	require.Equal(t, "Base", impls[0].TraitName)
}
