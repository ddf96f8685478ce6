// Package main provides the CLI entry point for radclient.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is set at build time
	Version = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "radclient",
		Short: "radclient - RADIUS client over UDP",
		Long: `radclient sends single RADIUS requests over UDP and prints the reply.

Every exchange binds a fresh socket, associates it with the server, sends
one request and waits for one reply. The connection timeout bounds the
association step and the socket timeout bounds sending plus receiving.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts.addFlags(rootCmd)

	rootCmd.AddCommand(authCmd(opts))
	rootCmd.AddCommand(acctCmd(opts))
	rootCmd.AddCommand(statusCmd(opts))
	rootCmd.AddCommand(benchCmd(opts))
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "radclient %s\n", Version)
			return nil
		},
	}
}
