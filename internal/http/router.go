package http

import (
	"compress/gzip"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/livrasand/gitdeposit/internal/config"
	"github.com/livrasand/gitdeposit/internal/deposit"
	"github.com/livrasand/gitdeposit/internal/git"
	"github.com/livrasand/gitdeposit/internal/metrics"
	"github.com/livrasand/gitdeposit/internal/notify"
	"github.com/livrasand/gitdeposit/internal/store"
	"github.com/livrasand/gitdeposit/internal/utils"
)

// Context keys set by the pipeline stages.
const (
	keyOwner      = "owner"
	keyRepository = "repository"
	keyRecord     = "record"
	keyHandle     = "handle"
	keyRequester  = "requester"
)

// Server holds what the handlers need.
type Server struct {
	Config   *config.Config
	Store    store.Store
	Deposit  *deposit.Service
	Notifier *notify.Notifier
}

func NewServer(cfg *config.Config, st store.Store, runner git.Runner, notifier *notify.Notifier) *Server {
	return &Server{
		Config:   cfg,
		Store:    st,
		Deposit:  deposit.NewService(st, cfg, runner),
		Notifier: notifier,
	}
}

// requestLogMiddleware tags the request with an ID, logs it once and records
// the request metrics.
func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-Id", id)
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		metrics.RequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(status)).Inc()
		metrics.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
		utils.Log("%s %s %d %s id=%s", c.Request.Method, c.Request.URL.Path, status, elapsed, id)
	}
}

// sizeLimitMiddleware rejects bodies above max. Chunked bodies have no
// declared length and are cut off while reading.
func sizeLimitMiddleware(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > max {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Push too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		c.Next()
	}
}

// gzipBodyMiddleware decompresses request bodies sent with
// Content-Encoding: gzip, as git does for large fetch negotiations. The
// inflated stream is capped at max as well.
func gzipBodyMiddleware(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.EqualFold(c.GetHeader("Content-Encoding"), "gzip") {
			c.Next()
			return
		}
		zr, err := gzip.NewReader(c.Request.Body)
		if err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, &gzipBody{Reader: zr, body: c.Request.Body}, max)
		c.Request.Header.Del("Content-Encoding")
		c.Request.ContentLength = -1
		c.Next()
	}
}

type gzipBody struct {
	*gzip.Reader
	body io.ReadCloser
}

func (g *gzipBody) Close() error {
	return errors.Join(g.Reader.Close(), g.body.Close())
}

// validationMiddleware validates the :user and :repo parameters. The
// repository segment must carry the .git suffix, which is stripped.
func validationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := c.Param("user")
		repo, ok := strings.CutSuffix(c.Param("repo"), ".git")

		if !ok || !isValidName(owner) || !isValidName(repo) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}

		c.Set(keyOwner, owner)
		c.Set(keyRepository, repo)
		c.Next()
	}
}

// isValidName checks a username or repository name taken from a URL
func isValidName(name string) bool {
	if len(name) == 0 || len(name) > store.UsernameMaxLength {
		return false
	}
	// Allow alphanumeric, - and _
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_') {
			return false
		}
	}
	return true
}

// authMiddleware checks for valid API key
func authMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin API disabled"})
			return
		}

		providedKey := c.GetHeader("X-Deposit-Key")
		if providedKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
			return
		}

		if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			return
		}

		c.Next()
	}
}

func SetupRouter(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogMiddleware())

	// Health and metrics endpoints (no auth required)
	r.GET("/health", HealthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(authMiddleware(s.Config.APIKey))
	s.registerAdmin(v1)

	repo := r.Group("/:user/:repo")
	repo.Use(validationMiddleware(), s.requireExistingRepo())
	{
		smart := repo.Group("")
		smart.Use(s.gitAccessMiddleware())
		smart.GET("/info/refs", s.InfoRefsHandler)

		rpc := smart.Group("")
		rpc.Use(sizeLimitMiddleware(s.Config.MaxPushSize), gzipBodyMiddleware(s.Config.MaxPushSize))
		rpc.POST("/git-upload-pack", s.ServiceRPCHandler)
		rpc.POST("/git-receive-pack", s.ServiceRPCHandler)

		browse := repo.Group("")
		browse.Use(s.requireAccess())
		browse.GET("", s.TreeHandler)
		browse.GET("/branches", s.BranchesHandler)
		browse.GET("/commits", s.CommitsHandler)
		browse.GET("/commits_stats", requireAJAX(), s.CommitsStatsHandler)

		rev := browse.Group("")
		rev.Use(s.requireExistingRev())
		rev.GET("/tree/:rev/*path", s.TreeHandler)
		rev.GET("/blob/:rev/*path", s.BlobHandler)
		rev.GET("/readme/:rev/*path", requireValidReadme(), requireAJAX(), s.ReadmeHandler)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return r
}
