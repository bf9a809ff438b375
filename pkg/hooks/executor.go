package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// stderrSummaryLimit bounds the stderr shown per failed hook in Summary.
const stderrSummaryLimit = 200

// HookResult records one hook run.
type HookResult struct {
	Hook     Hook
	Phase    HookPhase
	Success  bool
	Stdout   string
	Stderr   string
	Duration time.Duration
	Error    error
}

// Executor runs the configured hooks for one snapshot.
type Executor struct {
	config  *Config
	ctx     SnapshotContext
	logger  *zap.Logger
	results []HookResult
}

// NewExecutor creates an executor for config and ctx.
func NewExecutor(config *Config, ctx SnapshotContext) *Executor {
	if config == nil {
		config = &Config{}
	}
	return &Executor{config: config, ctx: ctx, logger: zap.NewNop()}
}

// SetLogger directs hook progress to l.
func (e *Executor) SetLogger(l *zap.Logger) {
	if l != nil {
		e.logger = l
	}
}

// SetFiles records the written files for the post-snapshot hooks.
func (e *Executor) SetFiles(files []string) {
	e.ctx.Files = append([]string(nil), files...)
}

// RunPreSnapshot runs the pre-snapshot hooks in order. The first failing
// hook with on_error=fail stops the run and its error is returned.
func (e *Executor) RunPreSnapshot() error {
	for _, h := range e.config.Hooks.PreSnapshot {
		r := e.run(h, PreSnapshot)
		if !r.Success && h.OnError != OnErrorContinue {
			return fmt.Errorf("pre-snapshot hook %q failed: %w", h.Name, r.Error)
		}
	}
	return nil
}

// RunPostSnapshot runs every post-snapshot hook. Failures of hooks with
// on_error=fail are joined into the returned error.
func (e *Executor) RunPostSnapshot() error {
	var errs []error
	for _, h := range e.config.Hooks.PostSnapshot {
		r := e.run(h, PostSnapshot)
		if !r.Success && h.OnError == OnErrorFail {
			errs = append(errs, fmt.Errorf("post-snapshot hook %q failed: %w", h.Name, r.Error))
		}
	}
	return errors.Join(errs...)
}

func (e *Executor) run(h Hook, phase HookPhase) HookResult {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", h.Command)
	cmd.Env = append(os.Environ(), e.ctx.ToEnv()...)
	for k, v := range h.Env {
		cmd.Env = append(cmd.Env, k+"="+os.ExpandEnv(v))
	}
	// Children of sh would keep the pipes open past the timeout.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r := HookResult{
		Hook:     h,
		Phase:    phase,
		Success:  err == nil,
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
		Duration: time.Since(start),
		Error:    err,
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		r.Success = false
		r.Error = fmt.Errorf("timed out after %s", timeout)
	}
	e.results = append(e.results, r)

	if r.Success {
		e.logger.Debug("hook finished", zap.String("hook", h.Name), zap.String("phase", string(phase)),
			zap.Duration("took", r.Duration))
	} else {
		e.logger.Warn("hook failed", zap.String("hook", h.Name), zap.String("phase", string(phase)),
			zap.Error(r.Error))
	}
	return r
}

// Results returns the hooks run so far in order.
func (e *Executor) Results() []HookResult {
	return e.results
}

// Summary describes the runs for the terminal.
func (e *Executor) Summary() string {
	if len(e.results) == 0 {
		return ""
	}
	ok, failed := 0, 0
	for _, r := range e.results {
		if r.Success {
			ok++
		} else {
			failed++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hooks: %d succeeded, %d failed\n", ok, failed)
	for _, r := range e.results {
		if r.Success {
			continue
		}
		fmt.Fprintf(&b, "  %s %s: %v\n", r.Phase, r.Hook.Name, r.Error)
		if r.Stderr != "" {
			fmt.Fprintf(&b, "    stderr: %s\n", truncate(r.Stderr, stderrSummaryLimit))
		}
	}
	return b.String()
}

// RunHooks loads the hooks of projectDir and returns an executor for them,
// or nil when noHooks is set or nothing is configured.
func RunHooks(projectDir string, ctx SnapshotContext, noHooks bool) (*Executor, error) {
	if noHooks {
		return nil, nil
	}
	loader := NewLoader(WithProjectDir(projectDir))
	if err := loader.Load(); err != nil {
		return nil, err
	}
	if !loader.HasHooks() {
		return nil, nil
	}
	return NewExecutor(loader.Config(), ctx), nil
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
