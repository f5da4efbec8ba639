// Package process runs package manager commands and captures their output.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/git-pkgs/proddeps/internal/core"
)

// ErrOutputTooLarge is returned when a command writes more than MaxOutputBytes.
var ErrOutputTooLarge = errors.New("command output exceeds limit")

const (
	DefaultTimeout        = 5 * time.Minute
	DefaultMaxOutputBytes = 200 * 1024 * 1024 // dependency trees can be large
	waitDelay             = 5 * time.Second
)

// Options configures a single command execution.
type Options struct {
	Dir            string
	Env            []string // KEY=VALUE overrides appended to the current environment
	Timeout        time.Duration
	MaxOutputBytes int64
	KillSignal     os.Signal
}

// Result holds the captured output of a successful command.
type Result struct {
	Stdout string
	Stderr string
}

// Runner executes external commands. Canceling ctx terminates the child
// process and the call returns a *core.CancellationError.
type Runner interface {
	Run(ctx context.Context, name string, args []string, opts Options) (*Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	defaults Options
}

// Option configures an ExecRunner.
type Option func(*ExecRunner)

// WithTimeout sets the default timeout for commands that do not set one.
func WithTimeout(d time.Duration) Option {
	return func(r *ExecRunner) {
		r.defaults.Timeout = d
	}
}

// WithMaxOutputBytes sets the default output cap.
func WithMaxOutputBytes(n int64) Option {
	return func(r *ExecRunner) {
		r.defaults.MaxOutputBytes = n
	}
}

// WithKillSignal sets the signal sent to a child process on cancellation.
func WithKillSignal(sig os.Signal) Option {
	return func(r *ExecRunner) {
		r.defaults.KillSignal = sig
	}
}

// NewExecRunner creates a runner with the given defaults.
func NewExecRunner(opts ...Option) *ExecRunner {
	r := &ExecRunner{
		defaults: Options{
			Timeout:        DefaultTimeout,
			MaxOutputBytes: DefaultMaxOutputBytes,
			KillSignal:     syscall.SIGTERM,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ExecRunner) merge(opts Options) Options {
	if opts.Timeout == 0 {
		opts.Timeout = r.defaults.Timeout
	}
	if opts.MaxOutputBytes == 0 {
		opts.MaxOutputBytes = r.defaults.MaxOutputBytes
	}
	if opts.KillSignal == nil {
		opts.KillSignal = r.defaults.KillSignal
	}
	return opts
}

// Run executes name with args and returns its output. A non-zero exit
// status is reported as a *core.ToolInvocationError carrying stderr.
func (r *ExecRunner) Run(ctx context.Context, name string, args []string, opts Options) (*Result, error) {
	opts = r.merge(opts)
	command := strings.TrimSpace(name + " " + strings.Join(args, " "))

	if err := ctx.Err(); err != nil {
		return nil, &core.CancellationError{Err: err}
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if opts.Timeout > 0 {
		var stop context.CancelFunc
		runCtx, stop = context.WithTimeoutCause(runCtx, opts.Timeout, fmt.Errorf("timed out after %s", opts.Timeout))
		defer stop()
	}

	limit := &outputLimit{max: opts.MaxOutputBytes, exceeded: func() { cancel(ErrOutputTooLarge) }}
	stdout := &cappedBuffer{limit: limit}
	stderr := &cappedBuffer{limit: limit}

	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	killProcessTree(cmd, opts.KillSignal)
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	if err != nil {
		// Only a failed run is attributed to cancellation; a clean exit stands.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &core.CancellationError{Err: ctxErr}
		}
		if cause := context.Cause(runCtx); cause != nil {
			err = cause
		}
		return nil, &core.ToolInvocationError{
			Command: command,
			Stderr:  stderr.String(),
			Err:     err,
		}
	}

	return &Result{Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

// outputLimit is shared by stdout and stderr so the cap covers both.
type outputLimit struct {
	mu       sync.Mutex
	max      int64
	written  int64
	tripped  bool
	exceeded func()
}

func (l *outputLimit) add(n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.written += int64(n)
	if l.max > 0 && l.written > l.max {
		if !l.tripped {
			l.tripped = true
			l.exceeded()
		}
		return false
	}
	return true
}

type cappedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit *outputLimit
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if !b.limit.add(len(p)) {
		return 0, ErrOutputTooLarge
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// FirstLine returns the first non-empty trimmed line of s.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
