package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spec-kit/talent-client/internal/session"
	apperrors "github.com/spec-kit/talent-client/pkg/util/errorutil"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and keep the session in the configured store",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt.Marketplace.Session.Logout(cmd.Context())
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), renderSession(rt.Marketplace.Session.Snapshot()))
		return nil
	},
}

var (
	loginEmail    string
	loginPassword string
)

func init() {
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "Account email")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Account password (or TALENT_PASSWORD)")

	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
}

func runLogin(cmd *cobra.Command, _ []string) error {
	password := loginPassword
	if password == "" {
		password = os.Getenv("TALENT_PASSWORD")
	}

	snap, err := rt.Marketplace.Session.Login(cmd.Context(), session.Credentials{Email: loginEmail, Password: password})
	if err != nil {
		return describeLoginError(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderSession(snap))
	return nil
}

func describeLoginError(err error) error {
	de := apperrors.ToDomainError(err)
	if de.Code != apperrors.CodeValidation || len(de.Details) == 0 {
		return fmt.Errorf("login failed: %s", apperrors.UserMessage(err))
	}
	return fmt.Errorf("login failed:\n%s", renderFieldErrors(de.Details))
}
