// Package resolve chooses between the npm and yarn pipelines and produces
// the final list of directories to package.
package resolve

import (
	"context"
	"io"

	"github.com/charmbracelet/log"

	"github.com/git-pkgs/proddeps/internal/core"
	"github.com/git-pkgs/proddeps/internal/npm"
	"github.com/git-pkgs/proddeps/internal/yarn"
)

// FlatLister lists installed production dependency directories.
type FlatLister interface {
	ListProductionPaths(ctx context.Context, dir string) ([]string, error)
}

// TreeLister resolves the production dependency tree of a project.
type TreeLister interface {
	HasLockfile(dir string) bool
	ProductionDependencies(ctx context.Context, dir string, names []string) ([]*core.Dependency, error)
}

// Resolver produces the production dependency closure of a project.
type Resolver struct {
	npm    FlatLister
	yarn   TreeLister
	logger *log.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// New creates a Resolver.
func New(npmTool FlatLister, yarnTool TreeLister, opts ...Option) *Resolver {
	r := &Resolver{
		npm:    npmTool,
		yarn:   yarnTool,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	_ FlatLister = (*npm.Tool)(nil)
	_ TreeLister = (*yarn.Tool)(nil)
)

// Dependencies returns the resolved yarn dependencies of dir, or nil when
// the project has no yarn lockfile.
func (r *Resolver) Dependencies(ctx context.Context, dir string, names []string) ([]*core.Dependency, error) {
	if !r.yarn.HasLockfile(dir) {
		r.logger.Debug("no yarn lockfile", "dir", dir)
		return nil, nil
	}
	return r.yarn.ProductionDependencies(ctx, dir, names)
}

// DependencyPaths returns dir followed by every production dependency
// directory, without duplicates. useYarn selects the yarn tree pipeline;
// names restricts it to the given top-level packages.
func (r *Resolver) DependencyPaths(ctx context.Context, dir string, useYarn bool, names []string) ([]string, error) {
	paths := []string{dir}

	if useYarn {
		r.logger.Debug("resolving with yarn", "dir", dir, "packages", names)
		deps, err := r.Dependencies(ctx, dir, names)
		if err != nil {
			return nil, err
		}
		paths = append(paths, core.Paths(deps)...)
	} else {
		r.logger.Debug("resolving with npm", "dir", dir)
		listed, err := r.npm.ListProductionPaths(ctx, dir)
		if err != nil {
			return nil, err
		}
		paths = append(paths, listed...)
	}

	return core.Dedupe(paths), nil
}
