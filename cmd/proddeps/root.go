package main

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/git-pkgs/proddeps"
	"github.com/git-pkgs/proddeps/internal/config"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
)

// app holds state shared by all subcommands.
type app struct {
	verbose bool
	cfgFile string

	stdout io.Writer
	stderr io.Writer
	logger *log.Logger

	// runner replaces the exec runner built from config when set.
	runner proddeps.Runner
}

func newApp() *app {
	return &app{stdout: os.Stdout, stderr: os.Stderr}
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proddeps",
		Short: "List the installed production dependencies of a JavaScript project",
		Long: `proddeps lists the directories that hold a project's production
dependencies, so that exactly those directories can be packaged.

By default npm reports the installed tree. With --yarn the yarn
dependency tree is resolved against node_modules instead, optionally
restricted to the closure of selected top-level packages.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.stdout = cmd.OutOrStdout()
			a.stderr = cmd.ErrOrStderr()
			a.logger = log.NewWithOptions(a.stderr, log.Options{Prefix: config.AppName})
			if a.verbose {
				a.logger.SetLevel(log.DebugLevel)
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./proddeps.yaml)")

	cmd.AddCommand(newListCommand(a))
	cmd.AddCommand(newLatestCommand(a))
	cmd.AddCommand(newVersionCommand(a))

	return cmd
}

// clientOptions adjust a client after config has been applied.
type clientOptions struct {
	registryURL string
}

// newClient loads configuration, searching dir for a config file, and
// builds a client from it.
func (a *app) newClient(ctx context.Context, dir string, extra clientOptions) (*proddeps.Client, error) {
	cfg, err := config.Load(ctx, config.LoadOptions{
		ConfigFilePath: a.cfgFile,
		SearchDirs:     []string{dir},
	})
	if err != nil {
		return nil, err
	}

	runner := a.runner
	if runner == nil {
		sig, err := cfg.Process.Signal()
		if err != nil {
			return nil, err
		}
		runner = proddeps.NewExecRunner(cfg.Process.Timeout, cfg.Process.MaxOutputBytes, sig)
	}

	opts := []proddeps.Option{
		proddeps.WithRunner(runner),
		proddeps.WithLockfile(cfg.Yarn.Lockfile),
		proddeps.WithLogger(a.logger),
	}
	switch {
	case extra.registryURL != "":
		opts = append(opts, proddeps.WithRegistry(extra.registryURL, cfg.Registry.MaxRetries))
	case cfg.Latest.Source == config.SourceRegistry:
		opts = append(opts, proddeps.WithRegistry(cfg.Registry.URL, cfg.Registry.MaxRetries))
	}

	a.logger.Debug("config loaded", "latest.source", cfg.Latest.Source, "timeout", cfg.Process.Timeout)
	return proddeps.NewClient(opts...), nil
}
