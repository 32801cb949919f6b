package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/livrasand/gitdeposit/internal/metrics"
	"github.com/livrasand/gitdeposit/internal/store"
	"github.com/livrasand/gitdeposit/internal/utils"
	"github.com/livrasand/gitdeposit/pkg/protocol"
)

// Decision is the outcome of the access gate.
type Decision string

const (
	Allow     Decision = "allow"
	Challenge Decision = "challenge"
	Forbid    Decision = "forbid"
)

// needsCredentials reports whether service on a repository with the given
// visibility requires an authenticated user holding a grant. Only fetching
// a public repository is anonymous.
func needsCredentials(service protocol.Service, private bool) bool {
	return service == protocol.ReceivePack || private
}

// Decide applies the gate table. authenticated and granted are ignored when
// the request needs no credentials.
func Decide(service protocol.Service, private, authenticated, granted bool) Decision {
	switch {
	case !needsCredentials(service, private):
		return Allow
	case !authenticated:
		return Challenge
	case !granted:
		return Forbid
	}
	return Allow
}

// requestService tells which service a Smart HTTP request is for: the
// ?service= parameter of info/refs or the last path element of an RPC.
func requestService(c *gin.Context) (protocol.Service, bool) {
	if strings.HasSuffix(c.Request.URL.Path, "/info/refs") {
		return protocol.ParseService(c.Query("service"))
	}
	path := c.Request.URL.Path
	return protocol.ParseService(path[strings.LastIndex(path, "/")+1:])
}

// gitAccessMiddleware guards info/refs and the service RPCs. It runs after
// requireExistingRepo.
func (s *Server) gitAccessMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		service, ok := requestService(c)
		if !ok {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		repo := c.MustGet(keyRecord).(*store.Repository)

		var authenticated, granted bool
		if needsCredentials(service, repo.Private) {
			if username, password, found := c.Request.BasicAuth(); found {
				user, err := s.Store.Authenticate(c.Request.Context(), username, password)
				switch {
				case err == nil:
					authenticated = true
					c.Set(keyRequester, user.Username)
					granted, err = s.Store.HasAccess(c.Request.Context(), user.Username, repo)
					if err != nil {
						utils.LogError("Access lookup for %s on %s failed: %v", user.Username, repo, err)
						c.AbortWithStatus(http.StatusInternalServerError)
						return
					}
				case !errors.Is(err, store.ErrInvalidCredentials) && !errors.Is(err, store.ErrNotFound):
					utils.LogError("Authentication for %s failed: %v", username, err)
					c.AbortWithStatus(http.StatusInternalServerError)
					return
				}
			}
		}

		decision := Decide(service, repo.Private, authenticated, granted)
		metrics.GateDecisions.WithLabelValues(string(service), string(decision)).Inc()

		switch decision {
		case Challenge:
			c.Header("WWW-Authenticate", "Basic")
			c.AbortWithStatus(http.StatusUnauthorized)
		case Forbid:
			c.String(http.StatusForbidden, "Access forbidden.")
			c.Abort()
		default:
			c.Next()
		}
	}
}
