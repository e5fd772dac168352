package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "List student profiles",
	RunE: func(cmd *cobra.Command, _ []string) error {
		state := rt.Marketplace.Students.FetchList(cmd.Context())
		fmt.Fprint(cmd.OutOrStdout(), renderStudents(state))
		return stateError(state.Status, state.Error)
	},
}

var studentCmd = &cobra.Command{
	Use:   "student <id>",
	Short: "Show one student profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state := rt.Marketplace.Students.FetchByID(cmd.Context(), args[0])
		fmt.Fprint(cmd.OutOrStdout(), renderStudent(state))
		return stateError(state.Status, state.Error)
	},
}

var serviceCmd = &cobra.Command{
	Use:   "service <id>",
	Short: "Show one service offered by a student",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state := rt.Marketplace.Services.FetchByID(cmd.Context(), args[0])
		fmt.Fprint(cmd.OutOrStdout(), renderService(state))
		return stateError(state.Status, state.Error)
	},
}

func init() {
	rootCmd.AddCommand(studentsCmd, studentCmd, serviceCmd)
}
