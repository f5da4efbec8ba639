package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newLatestCommand(a *app) *cobra.Command {
	var registryURL string

	cmd := &cobra.Command{
		Use:   "latest <name|purl>",
		Short: "Print the latest published version of a package",
		Example: `  proddeps latest express
  proddeps latest pkg:npm/%40babel/core
  proddeps latest lodash --registry https://registry.npmjs.org`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			client, err := a.newClient(cmd.Context(), wd, clientOptions{registryURL: registryURL})
			if err != nil {
				return err
			}

			version, err := client.LatestVersion(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, version)
			return nil
		},
	}

	cmd.Flags().StringVar(&registryURL, "registry", "", "query this npm registry over HTTP instead of running npm")

	return cmd
}
