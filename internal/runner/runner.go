// Package runner invokes the external playbook runner process and folds
// its structured result back into instance state.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"rigger/internal/api"
	"rigger/internal/config"
	"rigger/pkg/logging"
)

const subsystem = "Runner"

// execCommandContext is a variable to allow mocking in tests
var execCommandContext = exec.CommandContext

// Request describes one playbook run.
type Request struct {
	// InventoryPath is the hosts file handed to the runner via -i.
	InventoryPath string

	// PlaybookPath is the playbook to execute.
	PlaybookPath string

	// PrivateKeyPath, when set, is passed via --private-key.
	PrivateKeyPath string

	// Timeout bounds the whole run; zero falls back to the configured
	// default. A run that exceeds it surfaces as a retryable condition.
	Timeout time.Duration

	// Env is handed to the runner process only; the plugin's own
	// environment is never mutated.
	Env map[string]string

	// ExtraArgs are appended after the configured extra args.
	ExtraArgs []string
}

// Result is the structured outcome of a playbook run.
type Result struct {
	// Failures lists hosts that ran and reported task failures.
	Failures []string

	// Dark lists hosts the runner could not reach.
	Dark []string

	// Raw is the full result payload, persisted for diagnostics.
	Raw map[string]interface{}
}

// Runner executes playbook runs through the configured executable.
type Runner struct {
	cfg config.RunnerConfig
}

// New creates a Runner and verifies the executable can be found.
func New(cfg config.RunnerConfig) (*Runner, error) {
	if cfg.Executable == "" {
		cfg = config.DefaultRunnerConfig()
	}
	if _, err := exec.LookPath(cfg.Executable); err != nil {
		return nil, fmt.Errorf("playbook runner %q not found in PATH: %w", cfg.Executable, err)
	}
	return &Runner{cfg: cfg}, nil
}

// Run executes the playbook and parses the structured result the runner
// prints as its final JSON line. A run killed by its deadline returns a
// retryable HostsUnreachableError so the engine reschedules it.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.cfg.DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{}, r.cfg.ExtraArgs...)
	args = append(args, req.ExtraArgs...)
	args = append(args, "-i", req.InventoryPath)
	if req.PrivateKeyPath != "" {
		args = append(args, "--private-key", req.PrivateKeyPath)
	}
	args = append(args, req.PlaybookPath)

	logging.Info(subsystem, "running command: %s %s", r.cfg.Executable, strings.Join(args, " "))

	cmd := execCommandContext(runCtx, r.cfg.Executable, args...)
	cmd.Env = append(os.Environ(), envList(req.Env)...)

	output, err := cmd.CombinedOutput()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		logging.Warn(subsystem, "playbook run exceeded its %s timeout", timeout)
		return nil, api.NewHostsUnreachableError(nil)
	}

	result, ok := parseResult(output)
	if !ok {
		if err != nil {
			return nil, fmt.Errorf("playbook run failed without a structured result: %w\noutput: %s", err, string(output))
		}
		logging.Debug(subsystem, "playbook run produced no structured result")
		result = &Result{Raw: map[string]interface{}{}}
	}
	logging.Debug(subsystem, "playbook run output:\n%s", string(output))
	return result, nil
}

// envList renders an environment map into KEY=VALUE pairs.
func envList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for key, value := range env {
		out = append(out, key+"="+value)
	}
	return out
}

// parseResult scans the run output from the end for the runner's JSON
// result object.
func parseResult(output []byte) (*Result, bool) {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var raw map[string]interface{}
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			continue
		}
		return &Result{
			Failures: hostList(raw["failures"]),
			Dark:     hostList(raw["dark"]),
			Raw:      raw,
		}, true
	}
	return nil, false
}

// hostList extracts hostnames from a result field that is either a list of
// names or a map keyed by name.
func hostList(value interface{}) []string {
	switch typed := value.(type) {
	case []interface{}:
		out := make([]string, 0, len(typed))
		for _, entry := range typed {
			if name, ok := entry.(string); ok {
				out = append(out, name)
			}
		}
		return out
	case map[string]interface{}:
		out := make([]string, 0, len(typed))
		for name := range typed {
			out = append(out, name)
		}
		sort.Strings(out)
		return out
	default:
		return nil
	}
}
