package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Create and remove users",
	}
	cmd.AddCommand(newUserAddCmd(a), newUserRmCmd(a))
	return cmd
}

func newUserAddCmd(a *app) *cobra.Command {
	var (
		name     string
		password string
	)
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user and its deposit directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				var err error
				if password, err = a.password("Password for " + args[0]); err != nil {
					return fmt.Errorf("read password: %w", err)
				}
			}
			user, err := a.service.CreateUser(cmd.Context(), args[0], password, name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successMessage("User %s created", user.Username))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when omitted)")
	return cmd
}

func newUserRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <username>",
		Short: "Remove a user with all its repositories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.service.DeleteUser(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successMessage("User %s removed", args[0]))
			return nil
		},
	}
}
