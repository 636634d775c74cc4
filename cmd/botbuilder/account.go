package main

import (
	"errors"
	"fmt"
	"os"

	"bot-builder-go/internal/client"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage trading platform accounts",
}

var changePasswordCmd = &cobra.Command{
	Use:   "change-password",
	Short: "Change the trading password of a platform",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		platform, _ := cmd.Flags().GetString("platform")

		oldPassword, err := readPassword(cmd, "Current password: ")
		if err != nil {
			return err
		}
		newPassword, err := readPassword(cmd, "New password: ")
		if err != nil {
			return err
		}

		rc := client.NewRestClient(&current.cfg.API, current.log)
		err = rc.ChangePassword(cmd.Context(), client.PasswordChangeRequest{
			OldPassword: oldPassword,
			NewPassword: newPassword,
			Platform:    platform,
		})
		var pwErr *client.PasswordError
		var inputErr *client.InputValidationFailed
		switch {
		case errors.As(err, &pwErr):
			return fmt.Errorf("current password: %s", pwErr.Message)
		case errors.As(err, &inputErr):
			return fmt.Errorf("%s: %s", inputErr.Field, inputErr.Message)
		case err != nil:
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "password changed")
		return nil
	},
}

var newAccountCmd = &cobra.Command{
	Use:   "new",
	Short: "Open a trading platform account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		platform, _ := cmd.Flags().GetString("platform")
		category, _ := cmd.Flags().GetString("category")
		accountType, _ := cmd.Flags().GetString("type")

		rc := client.NewRestClient(&current.cfg.API, current.log)
		account, err := rc.CreateAccount(cmd.Context(), client.CreateAccountRequest{
			Platform:    platform,
			AccountType: client.AccountType{Category: category, Type: accountType},
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s account %s (%s %.2f)\n",
			account.Platform, account.LoginID, account.Currency, account.Balance)
		return nil
	},
}

// readPassword prompts on stderr and reads without echo when stdin is a terminal.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		var line string
		if _, err := fmt.Fscanln(cmd.InOrStdin(), &line); err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return line, nil
	}
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(changePasswordCmd, newAccountCmd)
	accountCmd.PersistentFlags().String("platform", client.PlatformMT5, "Trading platform")
	newAccountCmd.Flags().String("category", "demo", "Account category: demo or real")
	newAccountCmd.Flags().String("type", "all", "Account type: all, synthetic or financial")
}
