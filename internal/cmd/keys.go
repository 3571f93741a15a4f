package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/authskin/authskin/internal/security"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Loads or generates the signing keypair and prints the public key",
	Long: "Loads the signing keypair from signing.key or signing.dir. When the dir has no keys yet,\n" +
		"a new keypair is generated and persisted there. The public key must be distributed\n" +
		"to the game servers that verify the textures signatures.",
	RunE: func(cmd *cobra.Command, args []string) error {
		container := shouldGetContainer()
		var keys *security.KeyManager
		err := container.Resolve(&keys)
		if err != nil {
			return err
		}

		publicKey, err := keys.PublicKeyPem()
		if err != nil {
			return err
		}

		fmt.Print(publicKey)

		return nil
	},
}

func init() {
	RootCmd.AddCommand(keysCmd)
}
