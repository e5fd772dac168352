package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/talent-client/internal/service"
	"github.com/spec-kit/talent-client/internal/worker"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session with notifications and token expiry checks",
}

func init() {
	// Assigned here rather than in the literal to break the initialization
	// cycle shellCmd -> runShell -> repl -> shellCmd.
	shellCmd.RunE = runShell
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	m := rt.Marketplace
	worker.StartNotificationWorker(m.Notifications)
	worker.StartExpiryWatcher(ctx, worker.NewExpiryWatcher(m.Session, nil, rt.Config.Session.ExpiryWatchInterval(), rt.Logger))

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderSession(m.Session.Snapshot()))
	fmt.Fprintln(out, "Type a command (jobs, job <id>, apply <id>, inbox, ...), help or exit.")

	return repl(ctx, cmd.InOrStdin(), out, m.Notifications.Drain)
}

func repl(ctx context.Context, in io.Reader, out io.Writer, drain func() []service.Notification) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		args := strings.Fields(scanner.Text())
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "exit", "quit":
			return nil
		case "help":
			for _, c := range rootCmd.Commands() {
				if c.IsAvailableCommand() && c != shellCmd {
					fmt.Fprintf(out, "  %-10s %s\n", c.Name(), c.Short)
				}
			}
			continue
		}

		if err := dispatch(ctx, out, args); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
		if drain != nil {
			fmt.Fprint(out, renderNotifications(drain()))
		}
	}
}

// dispatch runs a subcommand in the current process without rebuilding the
// runtime.
func dispatch(ctx context.Context, out io.Writer, args []string) error {
	c, rest, err := rootCmd.Find(args)
	if err != nil || c == rootCmd || c == shellCmd {
		return fmt.Errorf("unknown command %q", args[0])
	}
	if err := c.ParseFlags(rest); err != nil {
		return err
	}
	positional := c.Flags().Args()
	if err := c.ValidateArgs(positional); err != nil {
		return err
	}
	c.SetOut(out)
	c.SetContext(ctx)
	if rt != nil {
		rt.Logger.Debug("shell command", zap.String("command", c.Name()))
	}
	return c.RunE(c, positional)
}
