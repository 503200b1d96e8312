package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ValidatePath rejects absolute paths and `..`-traversal and ensures
// the resolved path stays inside workDir, before any filesystem call
// touches the argument.
func ValidatePath(workDir, path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("absolute paths not allowed, use relative paths")
	}

	cleaned := filepath.Clean(path)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("directory traversal not allowed (..)")
	}

	absWorkDir, err := filepath.Abs(workDir)
	if err != nil {
		return "", fmt.Errorf("invalid working directory: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(absWorkDir, cleaned))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	if absPath != absWorkDir && !strings.HasPrefix(absPath, absWorkDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes working directory")
	}
	return absPath, nil
}

const maxReadFileSize = 10 * 1024 * 1024

type readFileArgs struct {
	Path      string `json:"path" jsonschema:"required,description=File path relative to the project root"`
	StartLine int    `json:"start_line,omitempty" jsonschema:"description=First line to include (1-indexed)"`
	EndLine   int    `json:"end_line,omitempty" jsonschema:"description=Last line to include (1-indexed)"`
}

// NewReadFileTool reads a file's contents, optionally restricted to a
// line range, with line numbers for easy cross-reference.
func NewReadFileTool(workDir string) Tool {
	return newSimpleTool("read_file",
		"Read the contents of a file, with optional line-range selection. Use to inspect code before answering questions about it.",
		mustSchema[readFileArgs](),
		func(ctx context.Context, input json.RawMessage) (string, error) {
			var args readFileArgs
			if err := json.Unmarshal(input, &args); err != nil {
				return "", fmt.Errorf("invalid input: %w", err)
			}

			fullPath, err := ValidatePath(workDir, args.Path)
			if err != nil {
				return "", err
			}

			info, err := os.Stat(fullPath)
			if err != nil {
				return "", fmt.Errorf("failed to stat file: %w", err)
			}
			if info.Size() > maxReadFileSize {
				return "", fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), int64(maxReadFileSize))
			}

			content, err := os.ReadFile(fullPath)
			if err != nil {
				return "", fmt.Errorf("failed to read file: %w", err)
			}

			lines := strings.Split(string(content), "\n")
			total := len(lines)

			start := 1
			if args.StartLine > 0 {
				start = args.StartLine
			}
			end := total
			if args.EndLine > 0 && args.EndLine < total {
				end = args.EndLine
			}
			if start > end {
				return "", fmt.Errorf("invalid range: start_line (%d) > end_line (%d)", start, end)
			}

			var b strings.Builder
			fmt.Fprintf(&b, "FILE: %s (%d lines)\n", args.Path, total)
			for i := start - 1; i < end && i < len(lines); i++ {
				fmt.Fprintf(&b, "%6d| %s\n", i+1, lines[i])
			}
			return b.String(), nil
		})
}

type listDirectoryArgs struct {
	Path string `json:"path,omitempty" jsonschema:"description=Directory path relative to the project root; defaults to the root"`
}

// NewListDirectoryTool lists the immediate children of a directory,
// marking subdirectories with a trailing slash.
func NewListDirectoryTool(workDir string) Tool {
	return newSimpleTool("list_directory",
		"List the files and subdirectories directly inside a directory.",
		mustSchema[listDirectoryArgs](),
		func(ctx context.Context, input json.RawMessage) (string, error) {
			var args listDirectoryArgs
			if len(input) > 0 {
				if err := json.Unmarshal(input, &args); err != nil {
					return "", fmt.Errorf("invalid input: %w", err)
				}
			}
			if args.Path == "" {
				args.Path = "."
			}

			fullPath, err := ValidatePath(workDir, args.Path)
			if err != nil {
				return "", err
			}

			entries, err := os.ReadDir(fullPath)
			if err != nil {
				return "", fmt.Errorf("failed to list directory: %w", err)
			}

			names := make([]string, 0, len(entries))
			for _, e := range entries {
				name := e.Name()
				if e.IsDir() {
					name += "/"
				}
				names = append(names, name)
			}
			sort.Strings(names)
			return strings.Join(names, "\n"), nil
		})
}

type searchFilesArgs struct {
	Query string `json:"query" jsonschema:"required,description=Literal text to search for"`
	Path  string `json:"path,omitempty" jsonschema:"description=Directory to search under (relative to the project root); defaults to the root"`
}

const maxSearchMatches = 200

// NewSearchFilesTool does a plain-text recursive grep under path (or
// the project root), returning matching lines as `file:line: text`.
func NewSearchFilesTool(workDir string) Tool {
	return newSimpleTool("search_files",
		"Search for a literal substring across files under a directory, returning matching lines with file:line references.",
		mustSchema[searchFilesArgs](),
		func(ctx context.Context, input json.RawMessage) (string, error) {
			var args searchFilesArgs
			if err := json.Unmarshal(input, &args); err != nil {
				return "", fmt.Errorf("invalid input: %w", err)
			}
			if args.Query == "" {
				return "", fmt.Errorf("query must not be empty")
			}
			if args.Path == "" {
				args.Path = "."
			}

			root, err := ValidatePath(workDir, args.Path)
			if err != nil {
				return "", err
			}

			var matches []string
			err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if len(matches) >= maxSearchMatches {
					return nil
				}
				if info.IsDir() {
					if isIgnoredDir(info.Name()) {
						return filepath.SkipDir
					}
					return nil
				}
				rel, relErr := filepath.Rel(workDir, path)
				if relErr != nil {
					rel = path
				}
				grepFile(path, rel, args.Query, &matches)
				return nil
			})
			if err != nil {
				return "", fmt.Errorf("search failed: %w", err)
			}

			if len(matches) == 0 {
				return "No matches found.", nil
			}
			return strings.Join(matches, "\n"), nil
		})
}

func grepFile(path, relPath, query string, matches *[]string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if len(*matches) >= maxSearchMatches {
			return
		}
		line := scanner.Text()
		if strings.Contains(line, query) {
			*matches = append(*matches, fmt.Sprintf("%s:%d: %s", relPath, lineNum, strings.TrimSpace(line)))
		}
	}
}

func isIgnoredDir(name string) bool {
	switch name {
	case ".git", "node_modules", "vendor", "target", "dist", "build", ".muninn":
		return true
	default:
		return false
	}
}

type finalAnswerArgs struct {
	Answer string `json:"answer" jsonschema:"required,description=The complete final answer"`
}

// NewFinalAnswerTool is a pseudo-tool: the engine intercepts any
// final_answer tool call before dispatching to the tool executor, so
// Execute here is only reached if something calls it outside that
// path, in which case it simply echoes the answer back.
func NewFinalAnswerTool() Tool {
	return newSimpleTool("final_answer",
		"Provide the final synthesized answer to the original query. Call this when you have gathered enough information to respond.",
		mustSchema[finalAnswerArgs](),
		func(ctx context.Context, input json.RawMessage) (string, error) {
			var args finalAnswerArgs
			if err := json.Unmarshal(input, &args); err != nil {
				return "", fmt.Errorf("invalid input: %w", err)
			}
			return args.Answer, nil
		})
}
