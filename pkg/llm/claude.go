package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Result holds the output from one Claude CLI invocation.
type Result struct {
	Result   string        `json:"result"`
	Stderr   string        `json:"stderr,omitempty"`
	Duration time.Duration `json:"duration"`
	ExitCode int           `json:"exit_code"`
}

// RunFunc executes a command and returns its stdout and stderr. Tests swap
// it for a fake; production uses runCommand.
type RunFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	// Drop CLAUDECODE so the CLI does not think it is nested in another session.
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, "CLAUDECODE=") {
			cmd.Env = append(cmd.Env, env)
		}
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// invoke runs the CLI in print mode with JSON output and unwraps the
// {"result": ...} object it prints.
func invoke(ctx context.Context, run RunFunc, command, model, prompt string) (*Result, error) {
	start := time.Now()

	args := []string{"-p", prompt, "--output-format", "json"}
	if model != "" {
		args = append(args, "--model", model)
	}
	stdout, stderr, err := run(ctx, command, args...)
	duration := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("run %s: %w (stderr: %s)", command, err, stderr)
		}
		exitCode = exitErr.ExitCode()
	}

	res := &Result{Stderr: string(stderr), Duration: duration, ExitCode: exitCode}
	var parsed struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(stdout, &parsed); err != nil {
		// Older CLIs print the bare text.
		res.Result = string(stdout)
	} else {
		res.Result = parsed.Result
	}
	return res, nil
}
