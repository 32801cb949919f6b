// Package deposit runs user and repository management: every change is
// written to the store first and then mirrored on disk by Hooks.
package deposit

import (
	"context"
	"fmt"

	"github.com/livrasand/gitdeposit/internal/config"
	"github.com/livrasand/gitdeposit/internal/git"
	"github.com/livrasand/gitdeposit/internal/store"
	"github.com/livrasand/gitdeposit/internal/utils"
)

type Service struct {
	Store store.Store
	Hooks *Hooks
}

func NewService(st store.Store, cfg *config.Config, runner git.Runner) *Service {
	return &Service{
		Store: st,
		Hooks: &Hooks{
			Root:          cfg.DepositRoot,
			DefaultBranch: cfg.DefaultBranch,
			Runner:        runner,
			Store:         st,
		},
	}
}

// hookFailed logs and wraps an error raised after the store write committed.
func hookFailed(what string, err error) error {
	utils.LogError("%s saved but the deposit was not updated: %v", what, err)
	return fmt.Errorf("%s saved but the deposit was not updated: %w", what, err)
}

func (s *Service) CreateUser(ctx context.Context, username, password, name string) (*store.User, error) {
	hash, err := store.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &store.User{Username: username, PasswordHash: hash, Name: name}
	if err := s.Store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	utils.Log("User created: %s", username)
	if err := s.Hooks.UserCreated(ctx, user); err != nil {
		return user, hookFailed("user "+username, err)
	}
	return user, nil
}

func (s *Service) DeleteUser(ctx context.Context, username string) error {
	if err := s.Store.DeleteUser(ctx, username); err != nil {
		return err
	}
	utils.Log("User deleted: %s", username)
	if err := s.Hooks.UserDeleted(ctx, username); err != nil {
		return hookFailed("user "+username, err)
	}
	return nil
}

func (s *Service) CreateRepository(ctx context.Context, repo *store.Repository) error {
	if err := s.Store.CreateRepository(ctx, repo); err != nil {
		return err
	}
	utils.Log("Repository created: %s", repo)
	if err := s.Hooks.RepositoryCreated(ctx, repo); err != nil {
		return hookFailed("repository "+repo.String(), err)
	}
	return nil
}

// UpdateRepository applies update and renames the directory when the name
// changed.
func (s *Service) UpdateRepository(ctx context.Context, owner, name string, update store.RepositoryUpdate) (*store.Repository, error) {
	repo, err := s.Store.UpdateRepository(ctx, owner, name, update)
	if err != nil {
		return nil, err
	}
	if repo.Name != name {
		utils.Log("Repository renamed: %s/%s -> %s", owner, name, repo.Name)
		if err := s.Hooks.RepositoryRenamed(ctx, owner, name, repo.Name); err != nil {
			return repo, hookFailed("repository "+repo.String(), err)
		}
	}
	return repo, nil
}

func (s *Service) RenameRepository(ctx context.Context, owner, name, newName string) (*store.Repository, error) {
	return s.UpdateRepository(ctx, owner, name, store.RepositoryUpdate{Name: &newName})
}

func (s *Service) DeleteRepository(ctx context.Context, owner, name string) error {
	if err := s.Store.DeleteRepository(ctx, owner, name); err != nil {
		return err
	}
	utils.Log("Repository deleted: %s/%s", owner, name)
	if err := s.Hooks.RepositoryDeleted(ctx, owner, name); err != nil {
		return hookFailed("repository "+owner+"/"+name, err)
	}
	return nil
}

func (s *Service) Grant(ctx context.Context, username, owner, name string) error {
	return s.Store.GrantAccess(ctx, store.Grant{Username: username, Owner: owner, Repository: name})
}

func (s *Service) Revoke(ctx context.Context, username, owner, name string) error {
	return s.Store.RevokeAccess(ctx, store.Grant{Username: username, Owner: owner, Repository: name})
}

// Overview is a repository record enriched with what git knows about it.
type Overview struct {
	*store.Repository
	LastUpdate string   `json:"last_update"`
	Status     string   `json:"status,omitempty"`
	Head       string   `json:"head,omitempty"`
	Branches   []string `json:"branches"`
}

// Describe builds the overview of repo. The last update falls back to the
// creation date for repositories without commits.
func (s *Service) Describe(ctx context.Context, repo *store.Repository) *Overview {
	handle := s.Hooks.Handle(repo.Owner, repo.Name)
	ov := &Overview{
		Repository: repo,
		Status:     handle.LatestStatus(ctx),
		Head:       handle.Head(ctx),
		Branches:   handle.Branches(ctx),
	}
	if last, ok := handle.LastUpdate(ctx); ok {
		ov.LastUpdate = git.FormatUTC(last)
	} else {
		ov.LastUpdate = git.FormatUTC(repo.CreatedAt)
	}
	if ov.Branches == nil {
		ov.Branches = []string{}
	}
	return ov
}
