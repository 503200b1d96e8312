package rlm

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const dirTreeMaxDepth = 3

var dirTreeNoise = map[string]bool{
	"target":       true,
	"node_modules": true,
	"__pycache__":  true,
	"vendor":       true,
}

// GenerateDirTree renders a compact directory tree for workDir, for
// injection into a system prompt as project context. Returns "", false if
// workDir cannot be stat'ed (e.g. it doesn't exist); directories that
// cannot be listed are left out of the tree.
func GenerateDirTree(workDir string) (string, bool) {
	if _, err := os.Stat(workDir); err != nil {
		return "", false
	}

	var b strings.Builder
	b.WriteString("## Project Structure\n\n```\n")
	walkDirTree(workDir, &b, 0, dirTreeMaxDepth)
	b.WriteString("```\n")
	return b.String(), true
}

type dirTreeEntry struct {
	name  string
	isDir bool
}

func walkDirTree(dir string, out *strings.Builder, depth, maxDepth int) {
	if depth > maxDepth {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	filtered := make([]dirTreeEntry, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || dirTreeNoise[name] {
			continue
		}
		filtered = append(filtered, dirTreeEntry{name: name, isDir: e.IsDir()})
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].isDir != filtered[j].isDir {
			return filtered[i].isDir
		}
		return filtered[i].name < filtered[j].name
	})

	indent := strings.Repeat("  ", depth)
	for _, entry := range filtered {
		if entry.isDir {
			fmt.Fprintf(out, "%s%s/\n", indent, entry.name)
			walkDirTree(filepath.Join(dir, entry.name), out, depth+1, maxDepth)
		} else {
			fmt.Fprintf(out, "%s%s\n", indent, entry.name)
		}
	}
}
