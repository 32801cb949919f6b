package main

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/livrasand/gitdeposit/internal/store"
)

// splitRepository parses "owner/name".
func splitRepository(arg string) (string, string, error) {
	owner, name, ok := strings.Cut(arg, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("expected <owner>/<repository>, got %q", arg)
	}
	return owner, strings.TrimSuffix(name, ".git"), nil
}

func newRepoCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "repo",
		Aliases: []string{"repository"},
		Short:   "Create, list and remove repositories",
	}
	cmd.AddCommand(
		newRepoCreateCmd(a),
		newRepoRmCmd(a),
		newRepoMvCmd(a),
		newRepoLsCmd(a),
		newRepoShowCmd(a),
		newRepoSetCmd(a),
	)
	return cmd
}

func newRepoCreateCmd(a *app) *cobra.Command {
	var (
		description string
		private     bool
	)
	cmd := &cobra.Command{
		Use:   "create <owner>/<name>",
		Short: "Register a repository and initialize it on disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name, err := splitRepository(args[0])
			if err != nil {
				return err
			}
			repo := &store.Repository{Owner: owner, Name: name, Description: description, Private: private}
			if err := a.service.CreateRepository(cmd.Context(), repo); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successMessage("Repository %s created", repo))
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Repository description")
	cmd.Flags().BoolVar(&private, "private", false, "Only the owner and granted users can fetch")
	return cmd
}

func newRepoRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <owner>/<name>",
		Short: "Remove a repository and its directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name, err := splitRepository(args[0])
			if err != nil {
				return err
			}
			if err := a.service.DeleteRepository(cmd.Context(), owner, name); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successMessage("Repository %s/%s removed", owner, name))
			return nil
		},
	}
}

func newRepoMvCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mv <owner>/<name> <new-name>",
		Short: "Rename a repository",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name, err := splitRepository(args[0])
			if err != nil {
				return err
			}
			repo, err := a.service.RenameRepository(cmd.Context(), owner, name, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successMessage("Repository %s/%s renamed to %s", owner, name, repo.Name))
			return nil
		},
	}
}

func newRepoSetCmd(a *app) *cobra.Command {
	var (
		description string
		private     bool
	)
	cmd := &cobra.Command{
		Use:   "set <owner>/<name>",
		Short: "Change the description or visibility of a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name, err := splitRepository(args[0])
			if err != nil {
				return err
			}
			var update store.RepositoryUpdate
			if cmd.Flags().Changed("description") {
				update.Description = &description
			}
			if cmd.Flags().Changed("private") {
				update.Private = &private
			}
			repo, err := a.service.UpdateRepository(cmd.Context(), owner, name, update)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successMessage("Repository %s updated", repo))
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Repository description")
	cmd.Flags().BoolVar(&private, "private", false, "Only the owner and granted users can fetch")
	return cmd
}

func visibility(private bool) string {
	if private {
		return "private"
	}
	return "public"
}

func newRepoLsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [owner]",
		Short: "List repositories",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner := ""
			if len(args) == 1 {
				owner = args[0]
			}
			repos, err := a.service.Store.ListRepositories(cmd.Context(), owner)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderHeader("Repositories"))
			table := tablewriter.NewWriter(out)
			table.Header("Repository", "Visibility", "Last update", "Description")
			for _, repo := range repos {
				ov := a.service.Describe(cmd.Context(), repo)
				table.Append(repo.String(), visibility(repo.Private), ov.LastUpdate, repo.Description)
			}
			return table.Render()
		},
	}
}

func newRepoShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <owner>/<name>",
		Short: "Show a repository with its branches, grants and references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name, err := splitRepository(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			repo, err := a.service.Store.GetRepository(ctx, owner, name)
			if err != nil {
				return err
			}
			grants, err := a.service.Store.ListGrants(ctx, owner, name)
			if err != nil {
				return err
			}
			ov := a.service.Describe(ctx, repo)

			users := make([]string, 0, len(grants))
			for _, g := range grants {
				users = append(users, g.Username)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderHeader(repo.String()))
			fmt.Fprintln(out, field("Visibility", visibility(repo.Private)))
			fmt.Fprintln(out, field("Description", repo.Description))
			fmt.Fprintln(out, field("Last update", ov.LastUpdate))
			fmt.Fprintln(out, field("Status", ov.Status))
			fmt.Fprintln(out, field("HEAD", ov.Head))
			fmt.Fprintln(out, field("Branches", strings.Join(ov.Branches, ", ")))
			fmt.Fprintln(out, field("Access", strings.Join(users, ", ")))

			refs, err := a.service.Hooks.Handle(owner, name).References()
			if err != nil || len(refs) == 0 {
				return nil
			}
			table := tablewriter.NewWriter(out)
			table.Header("Reference", "Hash")
			for _, ref := range refs {
				table.Append(ref.Name, ref.Hash)
			}
			return table.Render()
		},
	}
}

func newGrantCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "grant <username> <owner>/<name>",
		Short: "Give a user push access (and fetch access to a private repository)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name, err := splitRepository(args[1])
			if err != nil {
				return err
			}
			if err := a.service.Grant(cmd.Context(), args[0], owner, name); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successMessage("%s can now push to %s/%s", args[0], owner, name))
			return nil
		},
	}
}

func newRevokeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <username> <owner>/<name>",
		Short: "Remove a user's access to a repository",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name, err := splitRepository(args[1])
			if err != nil {
				return err
			}
			if err := a.service.Revoke(cmd.Context(), args[0], owner, name); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successMessage("Access of %s to %s/%s revoked", args[0], owner, name))
			return nil
		},
	}
}
