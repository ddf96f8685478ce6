package main

import (
	"github.com/spf13/cobra"

	"github.com/postalsys/radclient/internal/radius"
)

func statusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Send a Status-Server request",
		Long:  "Send a Status-Server request (RFC 5997) to check that the server is alive and the shared secret matches.",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session(cmd, nil)
			if err != nil {
				return err
			}

			_, err = s.exchange(cmd, s.newRequest(radius.CodeStatusServer))
			return err
		},
	}
}
