// Package yarn resolves the production dependency tree printed by
// `yarn list` to installed package directories.
package yarn

import (
	"context"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/git-pkgs/proddeps/internal/core"
	"github.com/git-pkgs/proddeps/internal/process"
)

const (
	command = "yarn"

	// DefaultLockfile marks a project installed with yarn.
	DefaultLockfile = "yarn.lock"
)

// Tool invokes yarn through a process.Runner.
type Tool struct {
	runner   process.Runner
	opts     process.Options
	exists   ExistsFunc
	lockfile string
	logger   *log.Logger
}

// Option configures a Tool.
type Option func(*Tool)

// WithProcessOptions sets timeout, output cap and environment for yarn invocations.
func WithProcessOptions(opts process.Options) Option {
	return func(t *Tool) {
		t.opts = opts
	}
}

// WithLockfile sets the lockfile name looked for in the project directory.
func WithLockfile(name string) Option {
	return func(t *Tool) {
		t.lockfile = name
	}
}

// WithFileExists overrides the filesystem check.
func WithFileExists(fn ExistsFunc) Option {
	return func(t *Tool) {
		t.exists = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(t *Tool) {
		t.logger = l
	}
}

// New creates a Tool that runs yarn with runner.
func New(runner process.Runner, opts ...Option) *Tool {
	t := &Tool{
		runner:   runner,
		exists:   DirExists,
		lockfile: DefaultLockfile,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// HasLockfile reports whether dir contains a yarn lockfile.
func (t *Tool) HasLockfile(dir string) bool {
	return t.exists(filepath.Join(dir, t.lockfile))
}

// ProductionDependencies lists the production dependencies of the project
// in dir. When names is non-empty only the dependencies reachable from
// those top-level packages are returned.
func (t *Tool) ProductionDependencies(ctx context.Context, dir string, names []string) ([]*core.Dependency, error) {
	opts := t.opts
	opts.Dir = dir
	t.logger.Debug("running", "cmd", "yarn list --prod --json", "dir", dir)
	res, err := t.runner.Run(ctx, command, []string{"list", "--prod", "--json"}, opts)
	if err != nil {
		return nil, err
	}

	trees, err := ParseTree(res.Stdout)
	if err != nil {
		return nil, err
	}

	builder := NewBuilder(dir, WithExists(t.exists), WithBuilderLogger(t.logger))
	deps := builder.Build(trees, len(names) == 0)
	if orphans := builder.Orphans(); len(orphans) > 0 {
		t.logger.Debug("unresolved tree entries", "count", len(orphans))
	}

	return Select(deps, names)
}
