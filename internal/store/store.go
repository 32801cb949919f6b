// Package store keeps users, repository metadata and access grants.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrExists             = errors.New("already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalid            = errors.New("invalid")
)

const (
	RepositoryNameMinLength        = 3
	RepositoryNameMaxLength        = 64
	RepositoryDescriptionMaxLength = 256
	UsernameMaxLength              = 150
)

type User struct {
	Username     string    `json:"username" yaml:"username"`
	PasswordHash string    `json:"password_hash" yaml:"password_hash"`
	Name         string    `json:"name,omitempty" yaml:"name,omitempty"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
}

type Repository struct {
	Owner       string    `json:"owner" yaml:"owner"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Private     bool      `json:"private" yaml:"private"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

func (r *Repository) String() string {
	return r.Owner + "/" + r.Name
}

// Grant gives Username push access to Owner/Repository and, for private
// repositories, fetch access.
type Grant struct {
	Username   string `json:"username" yaml:"username"`
	Owner      string `json:"owner" yaml:"owner"`
	Repository string `json:"repository" yaml:"repository"`
}

// RepositoryUpdate carries optional changes to a repository record.
type RepositoryUpdate struct {
	Name        *string
	Description *string
	Private     *bool
}

// Store is the identity and metadata backend.
type Store interface {
	Authenticate(ctx context.Context, username, password string) (*User, error)
	GetUser(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	DeleteUser(ctx context.Context, username string) error

	GetRepository(ctx context.Context, owner, name string) (*Repository, error)
	ListRepositories(ctx context.Context, owner string) ([]*Repository, error)
	CreateRepository(ctx context.Context, repo *Repository) error
	UpdateRepository(ctx context.Context, owner, name string, update RepositoryUpdate) (*Repository, error)
	DeleteRepository(ctx context.Context, owner, name string) error

	GrantAccess(ctx context.Context, grant Grant) error
	RevokeAccess(ctx context.Context, grant Grant) error
	HasAccess(ctx context.Context, username string, repo *Repository) (bool, error)
	ListGrants(ctx context.Context, owner, name string) ([]Grant, error)
}

var (
	usernamePattern       = regexp.MustCompile(`^\w+$`)
	repositoryNamePattern = regexp.MustCompile(`^[-\w]+$`)
	whitespace            = regexp.MustCompile(`\s+`)
)

// ValidateUsername accepts letters, digits and underscores.
func ValidateUsername(username string) error {
	if username == "" || len(username) > UsernameMaxLength || !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w username %q", ErrInvalid, username)
	}
	return nil
}

// NormalizeRepositoryName collapses whitespace runs into a dash and checks
// the length and character set.
func NormalizeRepositoryName(name string) (string, error) {
	name = whitespace.ReplaceAllString(strings.TrimSpace(name), "-")
	if len(name) < RepositoryNameMinLength || len(name) > RepositoryNameMaxLength {
		return "", fmt.Errorf("%w repository name: must be %d to %d characters", ErrInvalid, RepositoryNameMinLength, RepositoryNameMaxLength)
	}
	if !repositoryNamePattern.MatchString(name) {
		return "", fmt.Errorf("%w repository name %q", ErrInvalid, name)
	}
	return name, nil
}

// ValidateRepository normalizes the name in place and checks the description.
func ValidateRepository(repo *Repository) error {
	if err := ValidateUsername(repo.Owner); err != nil {
		return err
	}
	name, err := NormalizeRepositoryName(repo.Name)
	if err != nil {
		return err
	}
	repo.Name = name
	if len(repo.Description) > RepositoryDescriptionMaxLength {
		return fmt.Errorf("%w description: longer than %d characters", ErrInvalid, RepositoryDescriptionMaxLength)
	}
	return nil
}
