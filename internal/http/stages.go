package http

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/livrasand/gitdeposit/internal/git"
	"github.com/livrasand/gitdeposit/internal/store"
	"github.com/livrasand/gitdeposit/internal/utils"
)

func notFound(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Not found"})
}

// requireExistingRepo loads the repository record and its on-disk handle.
func (s *Server) requireExistingRepo() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, name := c.GetString(keyOwner), c.GetString(keyRepository)
		repo, err := s.Store.GetRepository(c.Request.Context(), owner, name)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				utils.LogError("Repository lookup for %s/%s failed: %v", owner, name, err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Store unavailable"})
				return
			}
			notFound(c)
			return
		}
		c.Set(keyRecord, repo)
		c.Set(keyHandle, s.Deposit.Hooks.Handle(repo.Owner, repo.Name))
		c.Next()
	}
}

// requireAccess hides private repositories from everyone but their owner.
// Credentials are optional; wrong ones count as anonymous.
func (s *Server) requireAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		repo := c.MustGet(keyRecord).(*store.Repository)
		if username, password, ok := c.Request.BasicAuth(); ok {
			if user, err := s.Store.Authenticate(c.Request.Context(), username, password); err == nil {
				c.Set(keyRequester, user.Username)
			}
		}
		if repo.Private && c.GetString(keyRequester) != repo.Owner {
			notFound(c)
			return
		}
		c.Next()
	}
}

// requireExistingRev accepts HEAD and branch names.
func (s *Server) requireExistingRev() gin.HandlerFunc {
	return func(c *gin.Context) {
		rev := c.Param("rev")
		if rev == "" {
			c.Next()
			return
		}
		handle := c.MustGet(keyHandle).(*git.Repository)
		if rev != git.DefaultRevision && !slices.Contains(handle.Branches(c.Request.Context()), rev) {
			notFound(c)
			return
		}
		c.Next()
	}
}

func requireValidReadme() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if !strings.HasSuffix(path, "README.md") && !strings.HasSuffix(path, "README.rst") {
			notFound(c)
			return
		}
		c.Next()
	}
}

func requireAJAX() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Requested-With") != "XMLHttpRequest" {
			notFound(c)
			return
		}
		c.Next()
	}
}
