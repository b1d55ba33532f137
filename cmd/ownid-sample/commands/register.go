package commands

import (
	"github.com/spf13/cobra"

	ownid "github.com/ownid/ownid-go"
)

func newRegisterCmd(opts *RootOptions) *cobra.Command {
	flow := &FlowOptions{}
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a passwordless account",
		Long: `Register launches a register flow for --email. If the email already
belongs to a password account, the flow is linked to it with --password.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFlows(cmd, opts, flow, ownid.PurposeRegister)
		},
	}
	flow.addFlags(cmd)
	return cmd
}
