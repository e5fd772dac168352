package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List open jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		state := rt.Marketplace.Jobs.FetchList(cmd.Context())
		fmt.Fprint(cmd.OutOrStdout(), renderJobs(state))
		return stateError(state.Status, state.Error)
	},
}

var jobCmd = &cobra.Command{
	Use:   "job <id>",
	Short: "Show one job and whether you applied",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state := rt.Marketplace.Jobs.FetchByID(cmd.Context(), args[0])
		fmt.Fprint(cmd.OutOrStdout(), renderJobView(rt.Marketplace.JobView(args[0])))
		return stateError(state.Status, state.Error)
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply <job-id>",
	Short: "Apply to a job as the signed-in student",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m := rt.Marketplace
		m.Jobs.FetchByID(cmd.Context(), args[0])
		out := m.Mutations.ApplyForJob(cmd.Context(), args[0], m.Session.Identity().StudentIDOrEmpty())
		fmt.Fprintln(cmd.OutOrStdout(), renderOutcome(out))
		if !out.OK && !out.Skipped {
			return fmt.Errorf("%s", out.Error)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd, jobCmd, applyCmd)
}
