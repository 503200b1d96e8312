package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is a session-scoped key/value store with a simple
// substring search, shared by the memory tools across one exploration
// run so findings can persist between sub-queries.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

func (m *MemoryStore) Store(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
}

func (m *MemoryStore) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

func (m *MemoryStore) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, existed := m.entries[key]
	delete(m.entries, key)
	return existed
}

func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Search returns every key whose stored value contains query, in key
// order.
func (m *MemoryStore) Search(query string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var hits []string
	for k, v := range m.entries {
		if strings.Contains(v, query) {
			hits = append(hits, k)
		}
	}
	sort.Strings(hits)
	return hits
}

type storeMemoryArgs struct {
	Key   string `json:"key" jsonschema:"required"`
	Value string `json:"value" jsonschema:"required"`
}

func NewStoreMemoryTool(store *MemoryStore) Tool {
	return newSimpleTool("store_memory",
		"Save a piece of information under a key, for later retrieval in this exploration.",
		mustSchema[storeMemoryArgs](),
		func(ctx context.Context, input json.RawMessage) (string, error) {
			var args storeMemoryArgs
			if err := json.Unmarshal(input, &args); err != nil {
				return "", fmt.Errorf("invalid input: %w", err)
			}
			if args.Key == "" {
				return "", fmt.Errorf("key must not be empty")
			}
			store.Store(args.Key, args.Value)
			return fmt.Sprintf("Stored memory %q.", args.Key), nil
		})
}

type queryMemoryArgs struct {
	Key string `json:"key" jsonschema:"required"`
}

func NewQueryMemoryTool(store *MemoryStore) Tool {
	return newSimpleTool("query_memory",
		"Retrieve a previously stored memory by its exact key.",
		mustSchema[queryMemoryArgs](),
		func(ctx context.Context, input json.RawMessage) (string, error) {
			var args queryMemoryArgs
			if err := json.Unmarshal(input, &args); err != nil {
				return "", fmt.Errorf("invalid input: %w", err)
			}
			value, ok := store.Get(args.Key)
			if !ok {
				return "", fmt.Errorf("no memory stored under key %q", args.Key)
			}
			return value, nil
		})
}

type searchMemoryArgs struct {
	Query string `json:"query" jsonschema:"required"`
}

func NewSearchMemoryTool(store *MemoryStore) Tool {
	return newSimpleTool("search_memory",
		"Search stored memories for ones whose value contains the given text, returning matching keys.",
		mustSchema[searchMemoryArgs](),
		func(ctx context.Context, input json.RawMessage) (string, error) {
			var args searchMemoryArgs
			if err := json.Unmarshal(input, &args); err != nil {
				return "", fmt.Errorf("invalid input: %w", err)
			}
			hits := store.Search(args.Query)
			if len(hits) == 0 {
				return "No memories matched.", nil
			}
			return strings.Join(hits, "\n"), nil
		})
}

type listMemoriesArgs struct{}

func NewListMemoriesTool(store *MemoryStore) Tool {
	return newSimpleTool("list_memories",
		"List the keys of every memory stored so far in this exploration.",
		mustSchema[listMemoriesArgs](),
		func(ctx context.Context, input json.RawMessage) (string, error) {
			keys := store.Keys()
			if len(keys) == 0 {
				return "No memories stored yet.", nil
			}
			return strings.Join(keys, "\n"), nil
		})
}

type deleteMemoryArgs struct {
	Key string `json:"key" jsonschema:"required"`
}

func NewDeleteMemoryTool(store *MemoryStore) Tool {
	return newSimpleTool("delete_memory",
		"Delete a stored memory by its key.",
		mustSchema[deleteMemoryArgs](),
		func(ctx context.Context, input json.RawMessage) (string, error) {
			var args deleteMemoryArgs
			if err := json.Unmarshal(input, &args); err != nil {
				return "", fmt.Errorf("invalid input: %w", err)
			}
			if !store.Delete(args.Key) {
				return "", fmt.Errorf("no memory stored under key %q", args.Key)
			}
			return fmt.Sprintf("Deleted memory %q.", args.Key), nil
		})
}
