// Package proddeps resolves the on-disk directories of a JavaScript
// project's production dependencies, so that exactly those directories can
// be packaged for deployment.
//
// Basic usage:
//
//	paths, err := proddeps.ResolveDependencyPaths(ctx, "/srv/app", false, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, p := range paths {
//		fmt.Println(p)
//	}
//
// Projects installed with yarn can restrict the result to the closure of
// selected top-level packages:
//
//	paths, err := proddeps.ResolveDependencyPaths(ctx, "/srv/app", true, []string{"express"})
//
// For control over process limits, logging and the registry, build a Client:
//
//	c := proddeps.NewClient(
//		proddeps.WithRunner(proddeps.NewExecRunner(time.Minute, 0, nil)),
//		proddeps.WithRegistry("https://registry.npmjs.org", 3),
//	)
//	latest, err := c.LatestVersion(ctx, "pkg:npm/%40babel/core")
package proddeps

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/git-pkgs/purl"

	"github.com/git-pkgs/proddeps/fetch"
	"github.com/git-pkgs/proddeps/internal/core"
	"github.com/git-pkgs/proddeps/internal/npm"
	"github.com/git-pkgs/proddeps/internal/process"
	"github.com/git-pkgs/proddeps/internal/registry"
	"github.com/git-pkgs/proddeps/internal/resolve"
	"github.com/git-pkgs/proddeps/internal/yarn"
)

// Re-export types from internal/core
type (
	// Dependency is a resolved installed package and its resolved children.
	Dependency = core.Dependency

	// RawTreeNode is one entry of yarn's dependency tree report.
	RawTreeNode = core.RawTreeNode
)

// Re-export types from internal/process
type (
	// Runner executes external commands.
	Runner = process.Runner

	// RunOptions configures a single command execution.
	RunOptions = process.Options

	// RunResult holds captured command output.
	RunResult = process.Result

	// ExecRunner runs commands with os/exec.
	ExecRunner = process.ExecRunner
)

// Re-export errors
var (
	ErrNotFound            = core.ErrNotFound
	ErrToolInvocation      = core.ErrToolInvocation
	ErrIncompatibleVersion = core.ErrIncompatibleVersion
	ErrMalformedOutput     = core.ErrMalformedOutput
	ErrDuplicateName       = core.ErrDuplicateName
	ErrUnknownName         = core.ErrUnknownName
	ErrCanceled            = core.ErrCanceled
)

// Error types
type (
	ToolInvocationError          = core.ToolInvocationError
	IncompatibleToolVersionError = core.IncompatibleToolVersionError
	MalformedOutputError         = core.MalformedOutputError
	DuplicateNameError           = core.DuplicateNameError
	UnknownNameError             = core.UnknownNameError
	CancellationError            = core.CancellationError
	NotFoundError                = core.NotFoundError
)

// NewExecRunner creates a runner. Zero values select the defaults: a five
// minute timeout, 200 MiB of combined output and SIGTERM on cancellation.
func NewExecRunner(timeout time.Duration, maxOutputBytes int64, killSignal os.Signal) *ExecRunner {
	var opts []process.Option
	if timeout > 0 {
		opts = append(opts, process.WithTimeout(timeout))
	}
	if maxOutputBytes > 0 {
		opts = append(opts, process.WithMaxOutputBytes(maxOutputBytes))
	}
	if killSignal != nil {
		opts = append(opts, process.WithKillSignal(killSignal))
	}
	return process.NewExecRunner(opts...)
}

// Client resolves production dependencies and published versions.
type Client struct {
	runner        Runner
	lockfile      string
	logger        *log.Logger
	registryURL   string
	registryTries int
	useRegistry   bool

	resolver *resolve.Resolver
	npm      *npm.Tool
	yarn     *yarn.Tool
	registry *registry.NPM
}

// Option configures a Client.
type Option func(*Client)

// WithRunner sets the command runner used for npm and yarn.
func WithRunner(r Runner) Option {
	return func(c *Client) {
		c.runner = r
	}
}

// WithLockfile sets the file name whose presence marks a yarn project.
func WithLockfile(name string) Option {
	return func(c *Client) {
		c.lockfile = name
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithRegistry makes LatestVersion query the registry at url over HTTP
// instead of running `npm show`. An empty url selects the public registry.
func WithRegistry(url string, maxRetries int) Option {
	return func(c *Client) {
		c.useRegistry = true
		c.registryURL = url
		c.registryTries = maxRetries
	}
}

// NewClient creates a client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		lockfile:      yarn.DefaultLockfile,
		logger:        log.New(io.Discard),
		registryTries: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.runner == nil {
		c.runner = process.NewExecRunner()
	}

	c.npm = npm.New(c.runner, npm.WithLogger(c.logger))
	c.yarn = yarn.New(c.runner, yarn.WithLockfile(c.lockfile), yarn.WithLogger(c.logger))
	c.resolver = resolve.New(c.npm, c.yarn, resolve.WithLogger(c.logger))

	if c.useRegistry {
		fetcher := fetch.NewCircuitBreakerFetcher(fetch.NewFetcher(
			fetch.WithAccept(fetch.AcceptNPM),
			fetch.WithMaxRetries(c.registryTries),
		))
		c.registry = registry.NewNPM(c.registryURL, fetcher)
	}

	return c
}

// DefaultClient returns a client that runs the package managers directly
// with default limits.
func DefaultClient() *Client {
	return NewClient()
}

// DependencyPaths returns workingDir followed by the directory of every
// production dependency, each exactly once. With useYarn the yarn tree is
// used and allowList, when non-empty, restricts the result to the closure
// of those top-level packages. Without a yarn lockfile the result is just
// workingDir.
func (c *Client) DependencyPaths(ctx context.Context, workingDir string, useYarn bool, allowList []string) ([]string, error) {
	return c.resolver.DependencyPaths(ctx, workingDir, useYarn, allowList)
}

// Dependencies returns the resolved yarn dependency tree of workingDir,
// restricted to allowList when it is non-empty. It returns nil when the
// project has no yarn lockfile.
func (c *Client) Dependencies(ctx context.Context, workingDir string, allowList []string) ([]*Dependency, error) {
	return c.resolver.Dependencies(ctx, workingDir, allowList)
}

// LatestVersion returns the latest published version of a package, given
// either its name or an npm Package URL. Package URLs of other ecosystems
// are rejected; use ParsePURL to inspect arbitrary identifiers.
func (c *Client) LatestVersion(ctx context.Context, nameOrPURL string) (string, error) {
	name, err := core.PackageName(nameOrPURL)
	if err != nil {
		return "", err
	}
	if c.registry != nil {
		c.logger.Debug("querying registry", "package", name)
		return c.registry.LatestVersion(ctx, name)
	}
	return c.npm.LatestVersion(ctx, name)
}

// ResolveDependencyPaths resolves production dependency directories using
// DefaultClient.
func ResolveDependencyPaths(ctx context.Context, workingDir string, useYarn bool, allowList []string) ([]string, error) {
	return DefaultClient().DependencyPaths(ctx, workingDir, useYarn, allowList)
}

// ResolveLatestPublishedVersion returns the latest published version of
// packageName as reported by `npm show`.
func ResolveLatestPublishedVersion(ctx context.Context, packageName string) (string, error) {
	return DefaultClient().LatestVersion(ctx, packageName)
}

// PURLFor returns the npm Package URL of a resolved dependency.
func PURLFor(dep *Dependency) string {
	return core.PURLFor(dep)
}

// PURL represents a parsed Package URL of any ecosystem.
type PURL = purl.PURL

// ParsePURL parses a Package URL string into its components. It accepts
// every ecosystem, as callers mapping a mixed bill of materials need, while
// LatestVersion and PURLFor deal only in npm identifiers and use the npm
// wrapper in internal/core.
func ParsePURL(purlStr string) (*PURL, error) {
	return purl.Parse(purlStr)
}
