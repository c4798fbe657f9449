package cli

import (
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Complete the interactive OAuth authorization flow",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Login(cmd.Context())
	},
}
