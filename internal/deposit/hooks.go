package deposit

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/livrasand/gitdeposit/internal/git"
	"github.com/livrasand/gitdeposit/internal/store"
	"github.com/livrasand/gitdeposit/internal/utils"
)

// Hooks keeps the deposit directory in line with the store. Each hook runs
// after the matching store write has succeeded. Nothing is rolled back when
// a hook fails.
type Hooks struct {
	Root          string
	DefaultBranch string
	Runner        git.Runner
	Store         store.Store
}

func (h *Hooks) userDir(username string) string {
	return filepath.Join(h.Root, username)
}

// Handle returns the repository handle for owner/name.
func (h *Hooks) Handle(owner, name string) *git.Repository {
	return git.Open(git.Location(h.Root, owner, name), h.Runner)
}

// UserCreated creates the user's deposit directory.
func (h *Hooks) UserCreated(_ context.Context, user *store.User) error {
	return utils.EnsureDir(h.userDir(user.Username))
}

// UserDeleted removes the user's deposit directory and every repository in it.
func (h *Hooks) UserDeleted(_ context.Context, username string) error {
	return utils.RemoveTree(h.userDir(username))
}

// RepositoryCreated initializes the bare repository and grants its owner access.
func (h *Hooks) RepositoryCreated(ctx context.Context, repo *store.Repository) error {
	if err := h.Handle(repo.Owner, repo.Name).InitBare(h.DefaultBranch); err != nil {
		return err
	}
	grant := store.Grant{Username: repo.Owner, Owner: repo.Owner, Repository: repo.Name}
	if err := h.Store.GrantAccess(ctx, grant); err != nil {
		return fmt.Errorf("grant owner access to %s: %w", repo, err)
	}
	return nil
}

// RepositoryRenamed moves {old}.git to {new}.git.
func (h *Hooks) RepositoryRenamed(_ context.Context, owner, oldName, newName string) error {
	return utils.RenameTree(git.Location(h.Root, owner, oldName), git.Location(h.Root, owner, newName))
}

// RepositoryDeleted removes the repository directory.
func (h *Hooks) RepositoryDeleted(_ context.Context, owner, name string) error {
	return utils.RemoveTree(git.Location(h.Root, owner, name))
}
