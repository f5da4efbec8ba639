package process

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/git-pkgs/proddeps/internal/core"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestRunCapturesOutput(t *testing.T) {
	requireShell(t)

	r := NewExecRunner()
	res, err := r.Run(context.Background(), "sh", []string{"-c", "echo out; echo err >&2"}, Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Stdout != "out\n" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "out\n")
	}
	if res.Stderr != "err\n" {
		t.Errorf("Stderr = %q, want %q", res.Stderr, "err\n")
	}
}

func TestRunUsesWorkingDirectory(t *testing.T) {
	requireShell(t)

	dir := t.TempDir()
	r := NewExecRunner()
	res, err := r.Run(context.Background(), "sh", []string{"-c", "pwd -P"}, Options{Dir: dir})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	got := strings.TrimSpace(res.Stdout)
	if filepath.Base(got) != filepath.Base(dir) {
		t.Errorf("pwd = %q, want suffix of %q", got, dir)
	}
}

func TestRunEnvOverride(t *testing.T) {
	requireShell(t)

	r := NewExecRunner()
	res, err := r.Run(context.Background(), "sh", []string{"-c", "echo $PRODDEPS_TEST"}, Options{Env: []string{"PRODDEPS_TEST=yes"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Stdout != "yes\n" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "yes\n")
	}
}

func TestRunNonZeroExit(t *testing.T) {
	requireShell(t)

	r := NewExecRunner()
	_, err := r.Run(context.Background(), "sh", []string{"-c", "echo broken >&2; exit 3"}, Options{})
	if !errors.Is(err, core.ErrToolInvocation) {
		t.Fatalf("Run = %v, want ErrToolInvocation", err)
	}
	var toolErr *core.ToolInvocationError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected *core.ToolInvocationError, got %T", err)
	}
	if strings.TrimSpace(toolErr.Stderr) != "broken" {
		t.Errorf("Stderr = %q, want %q", toolErr.Stderr, "broken")
	}
}

func TestRunMissingBinary(t *testing.T) {
	r := NewExecRunner()
	_, err := r.Run(context.Background(), "proddeps-no-such-binary", nil, Options{})
	if !errors.Is(err, core.ErrToolInvocation) {
		t.Errorf("Run = %v, want ErrToolInvocation", err)
	}
}

func TestRunCancellation(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	r := NewExecRunner()
	start := time.Now()
	_, err := r.Run(ctx, "sh", []string{"-c", "sleep 10"}, Options{})
	if !errors.Is(err, core.ErrCanceled) {
		t.Fatalf("Run = %v, want ErrCanceled", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected error to carry context.Canceled, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("child process was not terminated promptly")
	}
}

func TestRunCancellationKillsDescendants(t *testing.T) {
	requireShell(t)

	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	r := NewExecRunner()
	start := time.Now()
	// The trailing command keeps sh from exec'ing sleep, so sleep runs as a
	// grandchild holding the output pipes.
	_, err := r.Run(ctx, "sh", []string{"-c", "sleep 3; touch marker"}, Options{Dir: dir})
	if !errors.Is(err, core.ErrCanceled) {
		t.Fatalf("Run = %v, want ErrCanceled", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Run returned after %s, want prompt return", elapsed)
	}

	time.Sleep(3500 * time.Millisecond)
	if _, err := os.Stat(filepath.Join(dir, "marker")); err == nil {
		t.Error("grandchild process survived cancellation")
	}
}

// lateCancelCtx reports cancellation on every Err call after the first,
// as if the caller canceled right after the child exited.
type lateCancelCtx struct {
	context.Context
	calls atomic.Int32
}

func (c *lateCancelCtx) Err() error {
	if c.calls.Add(1) > 1 {
		return context.Canceled
	}
	return nil
}

func TestRunCancelAfterExitKeepsResult(t *testing.T) {
	requireShell(t)

	ctx := &lateCancelCtx{Context: context.Background()}
	r := NewExecRunner()
	res, err := r.Run(ctx, "sh", []string{"-c", "echo done"}, Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Stdout != "done\n" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "done\n")
	}
}

func TestRunAlreadyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewExecRunner()
	_, err := r.Run(ctx, "sh", []string{"-c", "true"}, Options{})
	if !errors.Is(err, core.ErrCanceled) {
		t.Errorf("Run = %v, want ErrCanceled", err)
	}
}

func TestRunTimeout(t *testing.T) {
	requireShell(t)

	r := NewExecRunner(WithTimeout(50 * time.Millisecond))
	_, err := r.Run(context.Background(), "sh", []string{"-c", "sleep 10"}, Options{})
	if !errors.Is(err, core.ErrToolInvocation) {
		t.Fatalf("Run = %v, want ErrToolInvocation", err)
	}
	if errors.Is(err, core.ErrCanceled) {
		t.Error("timeout should not be reported as caller cancellation")
	}
}

func TestRunOutputLimit(t *testing.T) {
	requireShell(t)

	r := NewExecRunner(WithMaxOutputBytes(16))
	_, err := r.Run(context.Background(), "sh", []string{"-c", "yes | head -c 100000"}, Options{})
	if !errors.Is(err, ErrOutputTooLarge) {
		t.Errorf("Run = %v, want ErrOutputTooLarge", err)
	}
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"3.7.2\n", "3.7.2"},
		{"\n  6.14.4  \nnoise\n", "6.14.4"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FirstLine(tt.input); got != tt.want {
			t.Errorf("FirstLine(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
