package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore_StoreAndGet(t *testing.T) {
	store := NewMemoryStore()
	store.Store("a", "hello")

	value, ok := store.Get("a")
	require.True(t, ok)
	require.Equal(t, "hello", value)
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	store.Store("a", "hello")

	require.True(t, store.Delete("a"))
	require.False(t, store.Delete("a"))

	_, ok := store.Get("a")
	require.False(t, ok)
}

func TestMemoryStore_Search(t *testing.T) {
	store := NewMemoryStore()
	store.Store("auth", "uses JWT tokens")
	store.Store("db", "uses Postgres")

	hits := store.Search("JWT")
	require.Equal(t, []string{"auth"}, hits)
}

func TestStoreMemoryTool_RejectsEmptyKey(t *testing.T) {
	tool := NewStoreMemoryTool(NewMemoryStore())
	input, _ := json.Marshal(map[string]string{"key": "", "value": "x"})
	_, err := tool.Execute(context.Background(), input)
	require.Error(t, err)
}

func TestQueryMemoryTool_RoundTrip(t *testing.T) {
	store := NewMemoryStore()
	storeTool := NewStoreMemoryTool(store)
	queryTool := NewQueryMemoryTool(store)

	storeInput, _ := json.Marshal(map[string]string{"key": "k", "value": "v"})
	_, err := storeTool.Execute(context.Background(), storeInput)
	require.NoError(t, err)

	queryInput, _ := json.Marshal(map[string]string{"key": "k"})
	output, err := queryTool.Execute(context.Background(), queryInput)
	require.NoError(t, err)
	require.Equal(t, "v", output)
}

func TestQueryMemoryTool_MissingKeyErrors(t *testing.T) {
	tool := NewQueryMemoryTool(NewMemoryStore())
	input, _ := json.Marshal(map[string]string{"key": "missing"})
	_, err := tool.Execute(context.Background(), input)
	require.Error(t, err)
}

func TestListMemoriesTool(t *testing.T) {
	store := NewMemoryStore()
	store.Store("b", "2")
	store.Store("a", "1")

	tool := NewListMemoriesTool(store)
	output, err := tool.Execute(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "a\nb", output)
}

func TestListMemoriesTool_Empty(t *testing.T) {
	tool := NewListMemoriesTool(NewMemoryStore())
	output, err := tool.Execute(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "No memories stored yet.", output)
}

func TestDeleteMemoryTool(t *testing.T) {
	store := NewMemoryStore()
	store.Store("a", "1")

	tool := NewDeleteMemoryTool(store)
	input, _ := json.Marshal(map[string]string{"key": "a"})
	_, err := tool.Execute(context.Background(), input)
	require.NoError(t, err)

	_, ok := store.Get("a")
	require.False(t, ok)
}

func TestDeleteMemoryTool_MissingKeyErrors(t *testing.T) {
	tool := NewDeleteMemoryTool(NewMemoryStore())
	input, _ := json.Marshal(map[string]string{"key": "missing"})
	_, err := tool.Execute(context.Background(), input)
	require.Error(t, err)
}
