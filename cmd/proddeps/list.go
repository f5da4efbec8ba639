package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/proddeps"
)

type listParams struct {
	dir      string
	yarn     bool
	packages []string
	purl     bool
}

func newListCommand(a *app) *cobra.Command {
	var p listParams

	cmd := &cobra.Command{
		Use:   "list [dir]",
		Short: "Print production dependency directories",
		Long: `Print the project directory followed by the directory of every
installed production dependency, one per line.`,
		Example: `  # Use npm's view of the installed tree
  proddeps list ./app

  # Resolve the yarn tree, keeping only what express needs
  proddeps list ./app --yarn --package express

  # Print Package URLs instead of paths
  proddeps list ./app --yarn --purl`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.dir = "."
			if len(args) > 0 {
				p.dir = args[0]
			}
			return a.runList(cmd.Context(), p)
		},
	}

	cmd.Flags().BoolVar(&p.yarn, "yarn", false, "resolve the yarn dependency tree")
	cmd.Flags().StringSliceVarP(&p.packages, "package", "p", nil, "restrict to the closure of these top-level packages (yarn only)")
	cmd.Flags().BoolVar(&p.purl, "purl", false, "print Package URLs of the resolved tree (yarn only)")

	return cmd
}

func (a *app) runList(ctx context.Context, p listParams) error {
	if p.purl && !p.yarn {
		return errors.New("--purl requires --yarn")
	}

	dir, err := filepath.Abs(p.dir)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", p.dir, err)
	}

	client, err := a.newClient(ctx, dir, clientOptions{})
	if err != nil {
		return err
	}

	if p.purl {
		deps, err := client.Dependencies(ctx, dir, p.packages)
		if err != nil {
			return err
		}
		for _, id := range purls(deps) {
			fmt.Fprintln(a.stdout, id)
		}
		return nil
	}

	paths, err := client.DependencyPaths(ctx, dir, p.yarn, p.packages)
	if err != nil {
		return err
	}
	for _, path := range paths {
		fmt.Fprintln(a.stdout, path)
	}
	return nil
}

// purls returns the Package URL of every dependency in pre-order, each once.
func purls(deps []*proddeps.Dependency) []string {
	var out []string
	seen := make(map[string]bool)
	for _, dep := range deps {
		dep.Walk(func(d *proddeps.Dependency) bool {
			id := proddeps.PURLFor(d)
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
			return true
		})
	}
	return out
}
