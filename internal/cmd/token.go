package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/authskin/authskin/internal/security"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Creates a new token, which allows to interact with the management API",
	RunE: func(cmd *cobra.Command, args []string) error {
		scopeNames, err := cmd.Flags().GetStringSlice("scope")
		if err != nil {
			return err
		}

		scopes := make([]security.Scope, len(scopeNames))
		for i, name := range scopeNames {
			scopes[i] = security.Scope(name)
		}

		container := shouldGetContainer()
		var auth *security.Jwt
		err = container.Resolve(&auth)
		if err != nil {
			return err
		}

		token, err := auth.NewToken(scopes...)
		if err != nil {
			return fmt.Errorf("Unable to create a new token. The error is %v\n", err)
		}

		fmt.Println(token)

		return nil
	},
}

func init() {
	tokenCmd.Flags().StringSlice(
		"scope",
		[]string{string(security.TexturesScope), string(security.PlayersScope)},
		"scopes granted to the token",
	)
	RootCmd.AddCommand(tokenCmd)
}
