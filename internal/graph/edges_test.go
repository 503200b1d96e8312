package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEdgeFactories(t *testing.T) {
	t.Run("ContainsEdge", func(t *testing.T) {
		e := ContainsEdge("file__a", "fn__b")
		assert.Equal(t, "file__a", e.SourceID)
		assert.Equal(t, "fn__b", e.TargetID)
		assert.Equal(t, EdgeContains, e.Kind.Tag)
		assert.True(t, e.Kind.IsStructural())
	})

	t.Run("ImportsEdge carries path and alias", func(t *testing.T) {
		e := ImportsEdge("file__a", "import__os", "os", "o")
		assert.Equal(t, EdgeImports, e.Kind.Tag)
		assert.Equal(t, "os", e.Kind.ImportPath)
		assert.Equal(t, "o", e.Kind.ImportAlias)
		assert.True(t, e.Kind.IsDependency())
	})

	t.Run("CallsEdge carries call type and line", func(t *testing.T) {
		e := CallsEdge("fn__a", "fn__b", CallMethod, 42)
		assert.Equal(t, CallMethod, e.Kind.CallType)
		assert.Equal(t, 42, e.Kind.Line)
		assert.True(t, e.Kind.IsDependency())
	})

	t.Run("ImplementsEdge is a type relationship, not dependency", func(t *testing.T) {
		e := ImplementsEdge("struct__S", "trait__T")
		assert.True(t, e.Kind.IsTypeRelationship())
		assert.False(t, e.Kind.IsDependency())
	})

	t.Run("GeneratedByEdge carries generator name", func(t *testing.T) {
		e := GeneratedByEdge("fn__gen", "macro__m", "derive_builder")
		assert.Equal(t, "derive_builder", e.Kind.Generator)
	})
}

func TestCallType_Classification(t *testing.T) {
	assert.True(t, CallFFI.IsCrossLanguage())
	assert.True(t, CallAPI.IsCrossLanguage())
	assert.False(t, CallDirect.IsCrossLanguage())

	assert.True(t, CallDynamic.IsDynamic())
	assert.True(t, CallAPI.IsDynamic())
	assert.False(t, CallMethod.IsDynamic())
}
