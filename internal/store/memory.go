package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[string]*User
	repos  map[string]*Repository
	grants map[Grant]struct{}

	// onChange runs after every successful mutation, with the lock held.
	onChange func() error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  map[string]*User{},
		repos:  map[string]*Repository{},
		grants: map[Grant]struct{}{},
	}
}

func repoKey(owner, name string) string {
	return owner + "/" + name
}

func (s *MemoryStore) changed() error {
	if s.onChange == nil {
		return nil
	}
	return s.onChange()
}

func (s *MemoryStore) Authenticate(_ context.Context, username, password string) (*User, error) {
	s.mu.RLock()
	user, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := CheckPassword(user, password); err != nil {
		return nil, err
	}
	u := *user
	return &u, nil
}

func (s *MemoryStore) GetUser(_ context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	u := *user
	return &u, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, user *User) error {
	if err := ValidateUsername(user.Username); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; ok {
		return fmt.Errorf("user %s: %w", user.Username, ErrExists)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	u := *user
	s.users[user.Username] = &u
	return s.changed()
}

// DeleteUser removes the user, the repositories it owns and every grant
// naming either.
func (s *MemoryStore) DeleteUser(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; !ok {
		return fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	delete(s.users, username)
	for key, repo := range s.repos {
		if repo.Owner == username {
			delete(s.repos, key)
		}
	}
	for g := range s.grants {
		if g.Username == username || g.Owner == username {
			delete(s.grants, g)
		}
	}
	return s.changed()
}

func (s *MemoryStore) GetRepository(_ context.Context, owner, name string) (*Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	repo, ok := s.repos[repoKey(owner, name)]
	if !ok {
		return nil, fmt.Errorf("repository %s/%s: %w", owner, name, ErrNotFound)
	}
	r := *repo
	return &r, nil
}

func (s *MemoryStore) ListRepositories(_ context.Context, owner string) ([]*Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Repository
	for _, repo := range s.repos {
		if owner == "" || repo.Owner == owner {
			r := *repo
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (s *MemoryStore) CreateRepository(_ context.Context, repo *Repository) error {
	if err := ValidateRepository(repo); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[repo.Owner]; !ok {
		return fmt.Errorf("owner %s: %w", repo.Owner, ErrNotFound)
	}
	key := repoKey(repo.Owner, repo.Name)
	if _, ok := s.repos[key]; ok {
		return fmt.Errorf("repository %s: %w", key, ErrExists)
	}
	if repo.CreatedAt.IsZero() {
		repo.CreatedAt = time.Now().UTC()
	}
	r := *repo
	s.repos[key] = &r
	return s.changed()
}

func (s *MemoryStore) UpdateRepository(_ context.Context, owner, name string, update RepositoryUpdate) (*Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := repoKey(owner, name)
	current, ok := s.repos[key]
	if !ok {
		return nil, fmt.Errorf("repository %s: %w", key, ErrNotFound)
	}

	next := *current
	if update.Description != nil {
		next.Description = *update.Description
	}
	if update.Private != nil {
		next.Private = *update.Private
	}
	if update.Name != nil {
		next.Name = *update.Name
	}
	if err := ValidateRepository(&next); err != nil {
		return nil, err
	}

	if next.Name != name {
		newKey := repoKey(owner, next.Name)
		if _, taken := s.repos[newKey]; taken {
			return nil, fmt.Errorf("repository %s: %w", newKey, ErrExists)
		}
		delete(s.repos, key)
		for g := range s.grants {
			if g.Owner == owner && g.Repository == name {
				delete(s.grants, g)
				g.Repository = next.Name
				s.grants[g] = struct{}{}
			}
		}
		key = newKey
	}
	s.repos[key] = &next
	r := next
	return &r, s.changed()
}

func (s *MemoryStore) DeleteRepository(_ context.Context, owner, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := repoKey(owner, name)
	if _, ok := s.repos[key]; !ok {
		return fmt.Errorf("repository %s: %w", key, ErrNotFound)
	}
	delete(s.repos, key)
	for g := range s.grants {
		if g.Owner == owner && g.Repository == name {
			delete(s.grants, g)
		}
	}
	return s.changed()
}

func (s *MemoryStore) GrantAccess(_ context.Context, grant Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[grant.Username]; !ok {
		return fmt.Errorf("user %s: %w", grant.Username, ErrNotFound)
	}
	if _, ok := s.repos[repoKey(grant.Owner, grant.Repository)]; !ok {
		return fmt.Errorf("repository %s/%s: %w", grant.Owner, grant.Repository, ErrNotFound)
	}
	if _, ok := s.grants[grant]; ok {
		return nil
	}
	s.grants[grant] = struct{}{}
	return s.changed()
}

func (s *MemoryStore) RevokeAccess(_ context.Context, grant Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grants[grant]; !ok {
		return fmt.Errorf("grant for %s on %s/%s: %w", grant.Username, grant.Owner, grant.Repository, ErrNotFound)
	}
	delete(s.grants, grant)
	return s.changed()
}

func (s *MemoryStore) HasAccess(_ context.Context, username string, repo *Repository) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.grants[Grant{Username: username, Owner: repo.Owner, Repository: repo.Name}]
	return ok, nil
}

func (s *MemoryStore) ListGrants(_ context.Context, owner, name string) ([]Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Grant
	for g := range s.grants {
		if g.Owner == owner && g.Repository == name {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}
