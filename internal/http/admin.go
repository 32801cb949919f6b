package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/livrasand/gitdeposit/internal/deposit"
	"github.com/livrasand/gitdeposit/internal/git"
	"github.com/livrasand/gitdeposit/internal/store"
	"github.com/livrasand/gitdeposit/internal/utils"
)

type createUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

type createRepositoryRequest struct {
	Owner       string `json:"owner" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Private     bool   `json:"private"`
}

type updateRepositoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Private     *bool   `json:"private"`
}

// repositoryDetail is the admin view of one repository.
type repositoryDetail struct {
	*deposit.Overview
	References []git.Reference `json:"references"`
	Grants     []store.Grant   `json:"grants"`
}

func (s *Server) registerAdmin(v1 *gin.RouterGroup) {
	v1.POST("/users", s.createUser)
	v1.DELETE("/users/:username", s.deleteUser)
	v1.GET("/users/:username/repositories", s.listRepositories)

	v1.POST("/repositories", s.createRepository)
	v1.GET("/repositories/:owner/:name", s.showRepository)
	v1.PATCH("/repositories/:owner/:name", s.updateRepository)
	v1.DELETE("/repositories/:owner/:name", s.deleteRepository)
	v1.GET("/repositories/:owner/:name/access", s.listGrants)
	v1.PUT("/repositories/:owner/:name/access/:username", s.grantAccess)
	v1.DELETE("/repositories/:owner/:name/access/:username", s.revokeAccess)
}

// abortWithStoreError maps store and hook errors to a JSON error response.
func abortWithStoreError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrExists):
		status = http.StatusConflict
	case errors.Is(err, store.ErrInvalid):
		status = http.StatusBadRequest
	default:
		utils.LogError("Admin request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func (s *Server) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := s.Deposit.CreateUser(c.Request.Context(), req.Username, req.Password, req.Name)
	if err != nil {
		abortWithStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"username":   user.Username,
		"name":       user.Name,
		"created_at": user.CreatedAt,
	})
}

func (s *Server) deleteUser(c *gin.Context) {
	if err := s.Deposit.DeleteUser(c.Request.Context(), c.Param("username")); err != nil {
		abortWithStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listRepositories(c *gin.Context) {
	ctx := c.Request.Context()
	repos, err := s.Store.ListRepositories(ctx, c.Param("username"))
	if err != nil {
		abortWithStoreError(c, err)
		return
	}
	overviews := make([]*deposit.Overview, 0, len(repos))
	for _, repo := range repos {
		overviews = append(overviews, s.Deposit.Describe(ctx, repo))
	}
	c.JSON(http.StatusOK, gin.H{"repositories": overviews, "count": len(overviews)})
}

func (s *Server) createRepository(c *gin.Context) {
	var req createRepositoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	repo := &store.Repository{Owner: req.Owner, Name: req.Name, Description: req.Description, Private: req.Private}
	if err := s.Deposit.CreateRepository(c.Request.Context(), repo); err != nil {
		abortWithStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, repo)
}

func (s *Server) showRepository(c *gin.Context) {
	ctx := c.Request.Context()
	repo, err := s.Store.GetRepository(ctx, c.Param("owner"), c.Param("name"))
	if err != nil {
		abortWithStoreError(c, err)
		return
	}
	grants, err := s.Store.ListGrants(ctx, repo.Owner, repo.Name)
	if err != nil {
		abortWithStoreError(c, err)
		return
	}
	refs, err := s.Deposit.Hooks.Handle(repo.Owner, repo.Name).References()
	if err != nil {
		utils.LogDebug("References of %s: %v", repo, err)
	}
	if refs == nil {
		refs = []git.Reference{}
	}
	c.JSON(http.StatusOK, repositoryDetail{
		Overview:   s.Deposit.Describe(ctx, repo),
		References: refs,
		Grants:     grants,
	})
}

func (s *Server) updateRepository(c *gin.Context) {
	var req updateRepositoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	update := store.RepositoryUpdate{Name: req.Name, Description: req.Description, Private: req.Private}
	repo, err := s.Deposit.UpdateRepository(c.Request.Context(), c.Param("owner"), c.Param("name"), update)
	if err != nil {
		abortWithStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, repo)
}

func (s *Server) deleteRepository(c *gin.Context) {
	if err := s.Deposit.DeleteRepository(c.Request.Context(), c.Param("owner"), c.Param("name")); err != nil {
		abortWithStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listGrants(c *gin.Context) {
	grants, err := s.Store.ListGrants(c.Request.Context(), c.Param("owner"), c.Param("name"))
	if err != nil {
		abortWithStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access": grants})
}

func (s *Server) grantAccess(c *gin.Context) {
	if err := s.Deposit.Grant(c.Request.Context(), c.Param("username"), c.Param("owner"), c.Param("name")); err != nil {
		abortWithStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) revokeAccess(c *gin.Context) {
	if err := s.Deposit.Revoke(c.Request.Context(), c.Param("username"), c.Param("owner"), c.Param("name")); err != nil {
		abortWithStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
