package cmd

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/segmentio/go-prompt"
	"github.com/spf13/cobra"

	"github.com/authskin/authskin/internal/db"
	"github.com/authskin/authskin/internal/db/sqlite"
	"github.com/authskin/authskin/internal/dispatcher"
	"github.com/authskin/authskin/internal/security"
	"github.com/authskin/authskin/internal/textures"
	"github.com/authskin/authskin/internal/yggdrasil"
)

var validate = validator.New()

type newAccount struct {
	Username string `validate:"required,min=3,max=64,excludesall= "`
	Password string `validate:"required,min=8,max=72"`
}

type newPlayer struct {
	Name string `validate:"required,max=16,excludesall= "`
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manages accounts of the identity store",
}

var accountCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Creates a new account, the password is asked interactively",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := prompt.PasswordMasked("Password")
		if prompt.PasswordMasked("Repeat the password") != password {
			return errors.New("passwords don't match")
		}

		input := &newAccount{Username: args[0], Password: password}
		err := validate.Struct(input)
		if err != nil {
			return err
		}

		container := shouldGetContainer()
		var store *sqlite.Sqlite
		var hasher *security.PasswordHasher
		err = errors.Join(container.Resolve(&store), container.Resolve(&hasher))
		if err != nil {
			return err
		}

		ctx := context.Background()
		existing, err := store.FindAccountByUsername(ctx, input.Username)
		if err != nil {
			return err
		}

		if existing != nil {
			return fmt.Errorf("the username %s is already taken", input.Username)
		}

		hash, err := hasher.Hash(input.Password)
		if err != nil {
			return err
		}

		account := &db.Account{
			Uuid:         yggdrasil.NewPlayerId().Unsigned(),
			Username:     input.Username,
			PasswordHash: hash,
		}
		err = store.CreateAccount(ctx, account)
		if err != nil {
			return err
		}

		fmt.Printf("Account %s is created with the id %d\n", account.Username, account.Id)

		return nil
	},
}

var accountRemoveCmd = &cobra.Command{
	Use:   "remove <username>",
	Short: "Removes the account with all its players and textures",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		container := shouldGetContainer()
		var store *sqlite.Sqlite
		var manager *textures.Manager
		var events dispatcher.Dispatcher
		err := errors.Join(container.Resolve(&store), container.Resolve(&manager), container.Resolve(&events))
		if err != nil {
			return err
		}

		ctx := context.Background()
		account, err := store.FindAccountByUsername(ctx, args[0])
		if err != nil {
			return err
		}

		if account == nil {
			return fmt.Errorf("account %s doesn't exist", args[0])
		}

		if !prompt.Confirm("Remove the account %s with all its players and textures? (y/n)", account.Username) {
			return nil
		}

		err = manager.DeleteAccount(ctx, account.Id)
		// Avatars of the removed skins are deleted by the async subscribers
		events.WaitAsync()

		return err
	},
}

var playerCmd = &cobra.Command{
	Use:   "player",
	Short: "Manages players of the identity store",
}

var playerCreateCmd = &cobra.Command{
	Use:   "create <account username> <player name>",
	Short: "Creates a new player for the account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !utf8.ValidString(args[1]) {
			return errors.New("the name must be a valid UTF-8 string")
		}

		input := &newPlayer{Name: args[1]}
		err := validate.Struct(input)
		if err != nil {
			return err
		}

		container := shouldGetContainer()
		var store *sqlite.Sqlite
		err = container.Resolve(&store)
		if err != nil {
			return err
		}

		ctx := context.Background()
		account, err := store.FindAccountByUsername(ctx, args[0])
		if err != nil {
			return err
		}

		if account == nil {
			return fmt.Errorf("account %s doesn't exist", args[0])
		}

		existing, err := store.FindPlayerByName(ctx, input.Name)
		if err != nil {
			return err
		}

		if existing != nil {
			return fmt.Errorf("the name %s is already taken", input.Name)
		}

		player := &db.Player{
			AccountId: account.Id,
			Uuid:      yggdrasil.NewPlayerId().Unsigned(),
			Name:      input.Name,
		}
		err = store.CreatePlayer(ctx, player)
		if err != nil {
			return err
		}

		fmt.Printf("Player %s is created with the uuid %s\n", player.Name, player.Uuid)

		return nil
	},
}

var playerRemoveCmd = &cobra.Command{
	Use:   "remove <player uuid>",
	Short: "Removes the player",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		container := shouldGetContainer()
		var store *sqlite.Sqlite
		err := container.Resolve(&store)
		if err != nil {
			return err
		}

		return store.RemovePlayerByUuid(context.Background(), yggdrasil.NormalizeUuid(args[0]))
	},
}

func init() {
	accountCmd.AddCommand(accountCreateCmd, accountRemoveCmd)
	playerCmd.AddCommand(playerCreateCmd, playerRemoveCmd)
	RootCmd.AddCommand(accountCmd, playerCmd)
}
