package cli

import (
	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the node-side balance reporting agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Agent(cmd.Context())
	},
}
