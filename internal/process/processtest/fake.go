// Package processtest provides a scripted process.Runner for tests.
package processtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/git-pkgs/proddeps/internal/core"
	"github.com/git-pkgs/proddeps/internal/process"
)

// Response is the scripted outcome of one command line.
type Response struct {
	Stdout string
	Stderr string
	Err    error
}

// Call records one invocation seen by a Fake.
type Call struct {
	Command string
	Dir     string
}

// Fake answers commands from a table keyed by the full command line,
// e.g. "npm list --production".
type Fake struct {
	Responses map[string]Response

	mu    sync.Mutex
	calls []Call
}

// Run implements process.Runner.
func (f *Fake) Run(ctx context.Context, name string, args []string, opts process.Options) (*process.Result, error) {
	command := strings.TrimSpace(name + " " + strings.Join(args, " "))

	f.mu.Lock()
	f.calls = append(f.calls, Call{Command: command, Dir: opts.Dir})
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &core.CancellationError{Err: err}
	}

	resp, ok := f.Responses[command]
	if !ok {
		return nil, &core.ToolInvocationError{Command: command, Err: fmt.Errorf("unexpected command")}
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return &process.Result{Stdout: resp.Stdout, Stderr: resp.Stderr}, nil
}

// Calls returns the commands run so far.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}
