package database

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/livrasand/gitdeposit/internal/store"
)

// SupabaseClient implements store.Store over the PostgREST API of a
// Supabase project. It expects three tables:
//
//	users(username pk, password_hash, name, created_at)
//	repositories(owner, name, description, private, created_at), unique (owner, name)
//	repository_access(username, owner, repository), unique (username, owner, repository)
type SupabaseClient struct {
	URL        string
	key        string
	httpClient *http.Client
}

var _ store.Store = (*SupabaseClient)(nil)

func NewSupabaseClient(url, key string) *SupabaseClient {
	return &SupabaseClient{
		URL: strings.TrimSuffix(url, "/"),
		key: key,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				ForceAttemptHTTP2: false,
				TLSClientConfig:   &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
	}
}

func eq(value string) string {
	return "eq." + url.QueryEscape(value)
}

func (c *SupabaseClient) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL+"/rest/v1/"+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// list runs a GET and decodes the JSON array into out.
func (c *SupabaseClient) list(ctx context.Context, path string, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("supabase GET %s: status %d", strings.SplitN(path, "?", 2)[0], resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// write runs a mutation with Prefer: return=minimal or return=representation.
func (c *SupabaseClient) write(ctx context.Context, method, path string, body interface{}, out interface{}) (int, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return 0, err
	}
	if out != nil {
		req.Header.Set("Prefer", "return=representation")
	} else {
		req.Header.Set("Prefer", "return=minimal")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return resp.StatusCode, store.ErrExists
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("supabase %s %s: status %d", method, strings.SplitN(path, "?", 2)[0], resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

// count returns the number of rows matching path, read from Content-Range.
func (c *SupabaseClient) count(ctx context.Context, path string) (int, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Prefer", "count=exact")
	req.Header.Set("Range-Unit", "items")
	req.Header.Set("Range", "0-0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return 0, fmt.Errorf("failed to count: status %d", resp.StatusCode)
	}

	contentRange := resp.Header.Get("Content-Range")
	if contentRange == "" {
		return 0, fmt.Errorf("missing Content-Range header in response")
	}

	// "0-0/{total}" or "*/{total}"
	slashIdx := strings.LastIndex(contentRange, "/")
	if slashIdx == -1 {
		return 0, fmt.Errorf("invalid Content-Range format: %s", contentRange)
	}

	total, err := strconv.Atoi(contentRange[slashIdx+1:])
	if err != nil {
		return 0, fmt.Errorf("failed to parse total count from Content-Range '%s': %v", contentRange, err)
	}
	return total, nil
}

func (c *SupabaseClient) Authenticate(ctx context.Context, username, password string) (*store.User, error) {
	user, err := c.GetUser(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := store.CheckPassword(user, password); err != nil {
		return nil, err
	}
	return user, nil
}

func (c *SupabaseClient) GetUser(ctx context.Context, username string) (*store.User, error) {
	var users []store.User
	if err := c.list(ctx, "users?select=*&limit=1&username="+eq(username), &users); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("user %s: %w", username, store.ErrNotFound)
	}
	return &users[0], nil
}

func (c *SupabaseClient) CreateUser(ctx context.Context, user *store.User) error {
	if err := store.ValidateUsername(user.Username); err != nil {
		return err
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := c.write(ctx, http.MethodPost, "users", user, nil)
	if err != nil {
		return fmt.Errorf("create user %s: %w", user.Username, err)
	}
	return nil
}

// DeleteUser removes the user row together with its repositories and grants.
func (c *SupabaseClient) DeleteUser(ctx context.Context, username string) error {
	if _, err := c.GetUser(ctx, username); err != nil {
		return err
	}
	for _, path := range []string{
		"repository_access?username=" + eq(username),
		"repository_access?owner=" + eq(username),
		"repositories?owner=" + eq(username),
		"users?username=" + eq(username),
	} {
		if _, err := c.write(ctx, http.MethodDelete, path, nil, nil); err != nil {
			return fmt.Errorf("delete user %s: %w", username, err)
		}
	}
	return nil
}

func (c *SupabaseClient) GetRepository(ctx context.Context, owner, name string) (*store.Repository, error) {
	var repos []store.Repository
	path := "repositories?select=*&limit=1&owner=" + eq(owner) + "&name=" + eq(name)
	if err := c.list(ctx, path, &repos); err != nil {
		return nil, err
	}
	if len(repos) == 0 {
		return nil, fmt.Errorf("repository %s/%s: %w", owner, name, store.ErrNotFound)
	}
	return &repos[0], nil
}

func (c *SupabaseClient) ListRepositories(ctx context.Context, owner string) ([]*store.Repository, error) {
	path := "repositories?select=*&order=owner.asc,name.asc"
	if owner != "" {
		path += "&owner=" + eq(owner)
	}
	var repos []store.Repository
	if err := c.list(ctx, path, &repos); err != nil {
		return nil, err
	}
	out := make([]*store.Repository, len(repos))
	for i := range repos {
		out[i] = &repos[i]
	}
	return out, nil
}

func (c *SupabaseClient) CreateRepository(ctx context.Context, repo *store.Repository) error {
	if err := store.ValidateRepository(repo); err != nil {
		return err
	}
	if _, err := c.GetUser(ctx, repo.Owner); err != nil {
		return fmt.Errorf("owner %s: %w", repo.Owner, err)
	}
	if repo.CreatedAt.IsZero() {
		repo.CreatedAt = time.Now().UTC()
	}
	if _, err := c.write(ctx, http.MethodPost, "repositories", repo, nil); err != nil {
		return fmt.Errorf("create repository %s: %w", repo, err)
	}
	return nil
}

func (c *SupabaseClient) UpdateRepository(ctx context.Context, owner, name string, update store.RepositoryUpdate) (*store.Repository, error) {
	current, err := c.GetRepository(ctx, owner, name)
	if err != nil {
		return nil, err
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
	if err := store.ValidateRepository(&next); err != nil {
		return nil, err
	}

	patch := map[string]interface{}{
		"name":        next.Name,
		"description": next.Description,
		"private":     next.Private,
	}
	var updated []store.Repository
	path := "repositories?owner=" + eq(owner) + "&name=" + eq(name)
	if _, err := c.write(ctx, http.MethodPatch, path, patch, &updated); err != nil {
		return nil, fmt.Errorf("update repository %s/%s: %w", owner, name, err)
	}

	if next.Name != name {
		path := "repository_access?owner=" + eq(owner) + "&repository=" + eq(name)
		if _, err := c.write(ctx, http.MethodPatch, path, map[string]string{"repository": next.Name}, nil); err != nil {
			return nil, fmt.Errorf("move grants of %s/%s: %w", owner, name, err)
		}
	}

	if len(updated) > 0 {
		return &updated[0], nil
	}
	return &next, nil
}

func (c *SupabaseClient) DeleteRepository(ctx context.Context, owner, name string) error {
	if _, err := c.GetRepository(ctx, owner, name); err != nil {
		return err
	}
	for _, path := range []string{
		"repository_access?owner=" + eq(owner) + "&repository=" + eq(name),
		"repositories?owner=" + eq(owner) + "&name=" + eq(name),
	} {
		if _, err := c.write(ctx, http.MethodDelete, path, nil, nil); err != nil {
			return fmt.Errorf("delete repository %s/%s: %w", owner, name, err)
		}
	}
	return nil
}

// GrantAccess upserts the grant, so granting twice is harmless.
func (c *SupabaseClient) GrantAccess(ctx context.Context, grant store.Grant) error {
	if _, err := c.GetUser(ctx, grant.Username); err != nil {
		return err
	}
	if _, err := c.GetRepository(ctx, grant.Owner, grant.Repository); err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "repository_access", grant)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal,resolution=merge-duplicates")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to grant access: status %d", resp.StatusCode)
	}
	return nil
}

func (c *SupabaseClient) RevokeAccess(ctx context.Context, grant store.Grant) error {
	var removed []store.Grant
	path := "repository_access?username=" + eq(grant.Username) + "&owner=" + eq(grant.Owner) + "&repository=" + eq(grant.Repository)
	if _, err := c.write(ctx, http.MethodDelete, path, nil, &removed); err != nil {
		return err
	}
	if len(removed) == 0 {
		return fmt.Errorf("grant for %s on %s/%s: %w", grant.Username, grant.Owner, grant.Repository, store.ErrNotFound)
	}
	return nil
}

func (c *SupabaseClient) HasAccess(ctx context.Context, username string, repo *store.Repository) (bool, error) {
	if username == "" {
		return false, nil
	}
	path := "repository_access?select=username&username=" + eq(username) + "&owner=" + eq(repo.Owner) + "&repository=" + eq(repo.Name)
	n, err := c.count(ctx, path)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *SupabaseClient) ListGrants(ctx context.Context, owner, name string) ([]store.Grant, error) {
	var grants []store.Grant
	path := "repository_access?select=*&order=username.asc&owner=" + eq(owner) + "&repository=" + eq(name)
	if err := c.list(ctx, path, &grants); err != nil {
		return nil, err
	}
	return grants, nil
}
