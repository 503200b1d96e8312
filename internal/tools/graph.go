package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/colliery-io/muninn/internal/graph"
)

func formatNodes(nodes []graph.Node) string {
	if len(nodes) == 0 {
		return "No matching symbols found."
	}
	var b strings.Builder
	for _, n := range nodes {
		fmt.Fprintf(&b, "%s %s (%s) — %s:%d-%d\n", n.Kind, n.Name, n.Visibility, n.FilePath, n.StartLine, n.EndLine)
		if n.Signature != "" {
			fmt.Fprintf(&b, "    %s\n", n.Signature)
		}
		if n.DocComment != "" {
			fmt.Fprintf(&b, "    doc: %s\n", n.DocComment)
		}
	}
	return b.String()
}

type graphQueryArgs struct {
	Cypher string `json:"cypher" jsonschema:"required,description=The query to run"`
}

// NewGraphQueryTool runs a restricted Cypher-like query against the
// code graph store: single-node property match and one-hop directed
// traversal, the two shapes graph.Store.Query supports.
func NewGraphQueryTool(store *graph.Store) Tool {
	return newSimpleTool("graph_query",
		"Run a Cypher-like query against the code graph. Supports MATCH (n {prop:'val'}) RETURN n and one-hop MATCH (a)-[:REL]->(b {prop:'val'}) RETURN a|b.",
		mustSchema[graphQueryArgs](),
		func(ctx context.Context, input json.RawMessage) (string, error) {
			var args graphQueryArgs
			if err := json.Unmarshal(input, &args); err != nil {
				return "", fmt.Errorf("invalid input: %w", err)
			}
			nodes, err := store.Query(args.Cypher)
			if err != nil {
				return "", err
			}
			return formatNodes(nodes), nil
		})
}

type findCallersArgs struct {
	ID string `json:"id" jsonschema:"required,description=Symbol id; as returned by other graph tools"`
}

// NewFindCallersTool returns every symbol with a CALLS edge into id.
func NewFindCallersTool(store *graph.Store) Tool {
	return newSimpleTool("find_callers",
		"Find every function/method that calls the symbol with the given id.",
		mustSchema[findCallersArgs](),
		func(ctx context.Context, input json.RawMessage) (string, error) {
			var args findCallersArgs
			if err := json.Unmarshal(input, &args); err != nil {
				return "", fmt.Errorf("invalid input: %w", err)
			}
			nodes, err := store.FindCallers(args.ID)
			if err != nil {
				return "", err
			}
			return formatNodes(nodes), nil
		})
}

type findImplementationsArgs struct {
	ID string `json:"id" jsonschema:"required,description=Interface/trait symbol id"`
}

// NewFindImplementationsTool returns every symbol implementing the
// interface/trait with the given id.
func NewFindImplementationsTool(store *graph.Store) Tool {
	return newSimpleTool("find_implementations",
		"Find every type that implements the interface/trait with the given id.",
		mustSchema[findImplementationsArgs](),
		func(ctx context.Context, input json.RawMessage) (string, error) {
			var args findImplementationsArgs
			if err := json.Unmarshal(input, &args); err != nil {
				return "", fmt.Errorf("invalid input: %w", err)
			}
			nodes, err := store.FindImplementations(args.ID)
			if err != nil {
				return "", err
			}
			return formatNodes(nodes), nil
		})
}

type getSymbolArgs struct {
	NameOrID string `json:"name_or_id" jsonschema:"required,description=A symbol id or an exact symbol name"`
}

// NewGetSymbolTool resolves a symbol by its graph id if it looks like
// one, otherwise by exact name.
func NewGetSymbolTool(store *graph.Store) Tool {
	return newSimpleTool("get_symbol",
		"Look up a single symbol by its id or exact name.",
		mustSchema[getSymbolArgs](),
		func(ctx context.Context, input json.RawMessage) (string, error) {
			var args getSymbolArgs
			if err := json.Unmarshal(input, &args); err != nil {
				return "", fmt.Errorf("invalid input: %w", err)
			}

			if node, err := store.GetNode(args.NameOrID); err == nil && node != nil {
				return formatNodes([]graph.Node{*node}), nil
			}

			nodes, err := store.FindByName(args.NameOrID)
			if err != nil {
				return "", err
			}
			return formatNodes(nodes), nil
		})
}

type findSymbolsArgs struct {
	Name string `json:"name,omitempty" jsonschema:"description=Exact symbol name"`
	File string `json:"file,omitempty" jsonschema:"description=File path as recorded in the graph"`
}

// NewFindSymbolsTool finds symbols by exact name or by containing
// file, whichever is given.
func NewFindSymbolsTool(store *graph.Store) Tool {
	return newSimpleTool("find_symbols",
		"Find symbols by exact name or by the file that defines them.",
		mustSchema[findSymbolsArgs](),
		func(ctx context.Context, input json.RawMessage) (string, error) {
			var args findSymbolsArgs
			if len(input) > 0 {
				if err := json.Unmarshal(input, &args); err != nil {
					return "", fmt.Errorf("invalid input: %w", err)
				}
			}

			switch {
			case args.Name != "":
				nodes, err := store.FindByName(args.Name)
				if err != nil {
					return "", err
				}
				return formatNodes(nodes), nil
			case args.File != "":
				nodes, err := store.FindSymbolsInFile(args.File)
				if err != nil {
					return "", err
				}
				return formatNodes(nodes), nil
			default:
				return "", fmt.Errorf("one of name or file must be given")
			}
		})
}
