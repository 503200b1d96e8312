package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"
)

// replInterpreters maps the allowed REPL languages to the interpreter
// invocation used to run a source file. No arbitrary binary execution:
// only these three names are accepted.
var replInterpreters = map[string][]string{
	"python3": {"python3", "-c"},
	"node":    {"node", "-e"},
	"bash":    {"bash", "-c"},
}

const replTimeout = 10 * time.Second

type executeCodeArgs struct {
	Language string `json:"language" jsonschema:"required,enum=python3,enum=node,enum=bash"`
	Source   string `json:"source" jsonschema:"required,description=Source code to execute"`
}

type executeCodeResult struct {
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
	Success bool   `json:"success"`
}

// NewExecuteCodeTool runs source through the interpreter for language
// as a child process bounded by a wall-clock timeout, capturing
// stdout/stderr separately.
func NewExecuteCodeTool() Tool {
	return newSimpleTool("execute_code",
		"Execute a short code snippet in a sandboxed child process and return its stdout/stderr. Supported languages: python3, node, bash.",
		mustSchema[executeCodeArgs](),
		func(ctx context.Context, input json.RawMessage) (string, error) {
			var args executeCodeArgs
			if err := json.Unmarshal(input, &args); err != nil {
				return "", fmt.Errorf("invalid input: %w", err)
			}

			invocation, ok := replInterpreters[args.Language]
			if !ok {
				return "", fmt.Errorf("unsupported language %q, must be one of python3, node, bash", args.Language)
			}

			runCtx, cancel := context.WithTimeout(ctx, replTimeout)
			defer cancel()

			bin := invocation[0]
			cmdArgs := append(append([]string{}, invocation[1:]...), args.Source)
			cmd := exec.CommandContext(runCtx, bin, cmdArgs...)

			var stdout, stderr bytes.Buffer
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr

			err := cmd.Run()
			result := executeCodeResult{
				Stdout:  stdout.String(),
				Stderr:  stderr.String(),
				Success: err == nil,
			}

			encoded, marshalErr := json.MarshalIndent(result, "", "  ")
			if marshalErr != nil {
				return "", marshalErr
			}

			if runCtx.Err() == context.DeadlineExceeded {
				return string(encoded), fmt.Errorf("execution timed out after %s", replTimeout)
			}
			return string(encoded), nil
		})
}
