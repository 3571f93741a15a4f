package cmd

import (
	"github.com/spf13/cobra"

	"github.com/authskin/authskin/internal/di"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts HTTP handler for the authentication server and the management API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return startServer(di.ModuleYggdrasil, di.ModuleApi)
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)
}
