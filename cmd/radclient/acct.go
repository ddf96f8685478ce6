package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/postalsys/radclient/internal/credentials"
	"github.com/postalsys/radclient/internal/radius"
)

var acctStatusTypes = map[string]uint32{
	"start":          radius.AcctStatusStart,
	"stop":           radius.AcctStatusStop,
	"interim-update": radius.AcctStatusInterimUpdate,
	"on":             radius.AcctStatusAccountingOn,
	"off":            radius.AcctStatusAccountingOff,
}

func acctCmd(opts *options) *cobra.Command {
	var (
		status    string
		sessionID string
		user      string
		attrs     []string
	)

	cmd := &cobra.Command{
		Use:   "acct",
		Short: "Send an Accounting-Request",
		Long: `Send an Accounting-Request and wait for the Accounting-Response.

Status is one of start, stop, interim-update, on or off. A session ID is
required for start, stop and interim-update.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			statusType, ok := acctStatusTypes[strings.ToLower(status)]
			if !ok {
				return fmt.Errorf("invalid --status %q (must be start, stop, interim-update, on, or off)", status)
			}
			perSession := statusType != radius.AcctStatusAccountingOn && statusType != radius.AcctStatusAccountingOff
			if perSession && sessionID == "" {
				return fmt.Errorf("--session-id is required for --status %s", status)
			}

			s, err := opts.session(cmd, nil)
			if err != nil {
				return err
			}

			req := s.newRequest(radius.CodeAccountingRequest)
			req.AddUint32(radius.AttrAcctStatusType, statusType)
			if sessionID != "" {
				req.AddString(radius.AttrAcctSessionID, sessionID)
			}
			if user != "" {
				name, err := credentials.NormalizeUsername(user)
				if err != nil {
					return err
				}
				req.AddString(radius.AttrUserName, name)
			}
			req.AddUint32(radius.AttrEventTimestamp, uint32(time.Now().Unix()))
			if err := addAttributes(req, attrs); err != nil {
				return err
			}

			_, err = s.exchange(cmd, req)
			return err
		},
	}

	cmd.Flags().StringVar(&status, "status", "start", "Acct-Status-Type (start, stop, interim-update, on, off)")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "Acct-Session-Id")
	cmd.Flags().StringVarP(&user, "user", "u", "", "User-Name")
	cmd.Flags().StringArrayVarP(&attrs, "attr", "a", nil, "Extra attribute as Name=value (repeatable)")

	return cmd
}
