// Package npm runs the npm CLI to list installed production dependencies
// and look up published versions.
package npm

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"

	"github.com/git-pkgs/proddeps/internal/core"
	"github.com/git-pkgs/proddeps/internal/process"
)

const command = "npm"

// npm 3.7.0 through 3.7.3 print broken parseable listings.
var brokenReleases = mustConstraint(">= 3.7.0, <= 3.7.3")

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraint
}

// Tool invokes npm through a process.Runner.
type Tool struct {
	runner process.Runner
	opts   process.Options
	logger *log.Logger
}

// Option configures a Tool.
type Option func(*Tool)

// WithProcessOptions sets timeout, output cap and environment for npm invocations.
func WithProcessOptions(opts process.Options) Option {
	return func(t *Tool) {
		t.opts = opts
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(t *Tool) {
		t.logger = l
	}
}

// New creates a Tool that runs npm with runner.
func New(runner process.Runner, opts ...Option) *Tool {
	t := &Tool{
		runner: runner,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tool) run(ctx context.Context, dir string, args ...string) (*process.Result, error) {
	opts := t.opts
	opts.Dir = dir
	t.logger.Debug("running", "cmd", command+" "+strings.Join(args, " "), "dir", dir)
	return t.runner.Run(ctx, command, args, opts)
}

// Version returns the installed npm version.
func (t *Tool) Version(ctx context.Context, dir string) (string, error) {
	res, err := t.run(ctx, dir, "-v")
	if err != nil {
		return "", err
	}
	return process.FirstLine(res.Stdout), nil
}

// CheckVersion fails with *core.IncompatibleToolVersionError when the
// installed npm is a known-broken release. Versions that do not parse pass.
func (t *Tool) CheckVersion(ctx context.Context, dir string) error {
	version, err := t.Version(ctx, dir)
	if err != nil {
		return err
	}
	return CheckCompatible(version)
}

// CheckCompatible reports whether version is usable.
func CheckCompatible(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil
	}
	if brokenReleases.Check(v) {
		return &core.IncompatibleToolVersionError{Tool: command, Version: version}
	}
	return nil
}

// ListProductionPaths returns the directories of every installed production
// dependency of the project in dir, as reported by npm. Lines that are not
// absolute paths are log noise and are dropped.
func (t *Tool) ListProductionPaths(ctx context.Context, dir string) ([]string, error) {
	if err := t.CheckVersion(ctx, dir); err != nil {
		return nil, err
	}

	res, err := t.run(ctx, dir, "list", "--production", "--parseable", "--depth=99999", "--loglevel=error")
	if err != nil {
		return nil, err
	}

	return ParseListing(res.Stdout), nil
}

// ParseListing extracts the absolute paths from parseable `npm list` output.
func ParseListing(out string) []string {
	var paths []string
	for _, line := range strings.FieldsFunc(out, func(r rune) bool { return r == '\n' || r == '\r' }) {
		if line = strings.TrimSpace(line); filepath.IsAbs(line) {
			paths = append(paths, line)
		}
	}
	return core.Dedupe(paths)
}

// LatestVersion returns the version tagged latest for name, using `npm show`.
func (t *Tool) LatestVersion(ctx context.Context, name string) (string, error) {
	res, err := t.run(ctx, "", "show", name, "version")
	if err != nil {
		return "", err
	}
	version := process.FirstLine(res.Stdout)
	if version == "" {
		return "", &core.ToolInvocationError{
			Command: command + " show " + name + " version",
			Stderr:  res.Stderr,
			Err:     core.ErrNotFound,
		}
	}
	return version, nil
}
