package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/postalsys/radclient/internal/credentials"
	"github.com/postalsys/radclient/internal/radius"
)

// errRejected is returned when the server answers with Access-Reject.
var errRejected = errors.New("access rejected")

func authCmd(opts *options) *cobra.Command {
	var (
		user      string
		password  string
		normalize bool
		attrs     []string
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Send an Access-Request",
		Long: `Send an Access-Request with User-Name and User-Password and print the reply.

The password is prompted for when --password is not given. It is sent byte for
byte as entered unless --normalize-password applies the PRECIS OpaqueString
profile (RFC 8265). The command exits with an error when the server rejects
the credentials.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := credentials.NormalizeUsername(user)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("password") {
				p := credentials.NewPrompter()
				p.Out = cmd.ErrOrStderr()
				if password, err = p.Password("Password: "); err != nil {
					return err
				}
			}
			secret := password
			if normalize {
				if secret, err = credentials.NormalizePassword(password); err != nil {
					return err
				}
			} else if err := credentials.CheckPassword(password); err != nil {
				return err
			}

			s, err := opts.session(cmd, nil)
			if err != nil {
				return err
			}

			req := s.newRequest(radius.CodeAccessRequest)
			req.AddString(radius.AttrUserName, name)
			req.SetUserPassword(secret)
			if err := addAttributes(req, attrs); err != nil {
				return err
			}

			resp, err := s.exchange(cmd, req)
			if err != nil {
				return err
			}
			if resp.Code == radius.CodeAccessReject {
				return fmt.Errorf("%w for %s", errRejected, name)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "User-Name to authenticate")
	cmd.Flags().StringVarP(&password, "password", "p", "", "User-Password (prompted if omitted)")
	cmd.Flags().BoolVar(&normalize, "normalize-password", false, "Normalize the password with PRECIS OpaqueString before sending")
	cmd.Flags().StringArrayVarP(&attrs, "attr", "a", nil, "Extra attribute as Name=value (repeatable)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
