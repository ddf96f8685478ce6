package main

import (
	"github.com/spf13/cobra"

	"github.com/postalsys/radclient/internal/wizard"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		Long:  "Run the setup wizard to write a radclient configuration file, optionally probing the server first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := wizard.New().Run()
			return err
		},
	}
}
