package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "List conversations and their messages",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if rt.Marketplace.Session.Identity() == nil {
			return fmt.Errorf("sign in first")
		}
		view := rt.Marketplace.LoadInbox(cmd.Context())
		fmt.Fprint(cmd.OutOrStdout(), renderInbox(view, rt.Marketplace.Session.Identity().ID))
		return stateError(view.State.Status, view.State.Error)
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <conversation-id> <message...>",
	Short: "Send a message to a conversation",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := rt.Marketplace.Mutations.SendMessage(cmd.Context(), args[0], strings.Join(args[1:], " "))
		fmt.Fprintln(cmd.OutOrStdout(), renderOutcome(out))
		if !out.OK {
			return fmt.Errorf("%s", out.Error)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inboxCmd, sendCmd)
}
