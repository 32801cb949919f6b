package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// document is the on-disk layout of a FileStore.
type document struct {
	Users        []*User       `yaml:"users"`
	Repositories []*Repository `yaml:"repositories"`
	Access       []Grant       `yaml:"access"`
}

// FileStore is a MemoryStore persisted to a YAML file after every change.
type FileStore struct {
	*MemoryStore
	path string
}

// OpenFileStore loads path, starting empty when the file does not exist yet.
func OpenFileStore(path string) (*FileStore, error) {
	fs := &FileStore{MemoryStore: NewMemoryStore(), path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read store %s: %w", path, err)
	default:
		var doc document
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse store %s: %w", path, err)
		}
		if err := fs.load(&doc); err != nil {
			return nil, fmt.Errorf("load store %s: %w", path, err)
		}
	}

	fs.onChange = fs.save
	return fs, nil
}

func (fs *FileStore) load(doc *document) error {
	for _, u := range doc.Users {
		if err := ValidateUsername(u.Username); err != nil {
			return err
		}
		fs.users[u.Username] = u
	}
	for _, r := range doc.Repositories {
		if err := ValidateRepository(r); err != nil {
			return err
		}
		fs.repos[repoKey(r.Owner, r.Name)] = r
	}
	for _, g := range doc.Access {
		fs.grants[g] = struct{}{}
	}
	return nil
}

// save writes the current state. It runs with the MemoryStore lock held.
func (fs *FileStore) save() error {
	doc := document{}
	for _, u := range fs.users {
		doc.Users = append(doc.Users, u)
	}
	for _, r := range fs.repos {
		doc.Repositories = append(doc.Repositories, r)
	}
	for g := range fs.grants {
		doc.Access = append(doc.Access, g)
	}
	sort.Slice(doc.Users, func(i, j int) bool { return doc.Users[i].Username < doc.Users[j].Username })
	sort.Slice(doc.Repositories, func(i, j int) bool { return doc.Repositories[i].String() < doc.Repositories[j].String() })
	sort.Slice(doc.Access, func(i, j int) bool {
		a, b := doc.Access[i], doc.Access[j]
		if a.Owner+"/"+a.Repository != b.Owner+"/"+b.Repository {
			return a.Owner+"/"+a.Repository < b.Owner+"/"+b.Repository
		}
		return a.Username < b.Username
	})

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	if dir := filepath.Dir(fs.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	return nil
}

// Path returns the backing file.
func (fs *FileStore) Path() string {
	return fs.path
}
