package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	ownid "github.com/ownid/ownid-go"
)

func newLoginCmd(opts *RootOptions) *cobra.Command {
	flow := &FlowOptions{}
	var registerFirst bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with a passwordless credential",
		Long: `Login launches a login flow for --email. With --register-first the account
is registered in the same run, which is how to try login against the
in-process redis.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if registerFirst {
				if flow.SeedPasswordAccount {
					return fmt.Errorf("--register-first and --seed-password-account are mutually exclusive")
				}
				return runFlows(cmd, opts, flow, ownid.PurposeRegister, ownid.PurposeLogin)
			}
			return runFlows(cmd, opts, flow, ownid.PurposeLogin)
		},
	}
	flow.addFlags(cmd)
	cmd.Flags().BoolVar(&registerFirst, "register-first", false, "register --email before logging in")
	return cmd
}
