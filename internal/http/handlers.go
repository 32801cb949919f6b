package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/livrasand/gitdeposit/internal/git"
	"github.com/livrasand/gitdeposit/internal/metrics"
	"github.com/livrasand/gitdeposit/internal/notify"
	"github.com/livrasand/gitdeposit/internal/stats"
	"github.com/livrasand/gitdeposit/internal/store"
	"github.com/livrasand/gitdeposit/internal/utils"
	"github.com/livrasand/gitdeposit/pkg/protocol"
)

func handleOf(c *gin.Context) *git.Repository {
	return c.MustGet(keyHandle).(*git.Repository)
}

func (s *Server) InfoRefsHandler(c *gin.Context) {
	service, _ := protocol.ParseService(c.Query("service"))
	handle := handleOf(c)

	resp := protocol.NewResponder(service, protocol.Advertisement, handle).InfoRefs(c.Request.Context())
	if resp.Err != nil {
		utils.LogError("Advertisement of %s for %s failed: %v", service, handle.Location, resp.Err)
	}
	n, err := resp.Send(c.Writer)
	if err != nil {
		utils.LogDebug("Writing advertisement: %v", err)
	}
	metrics.ServiceBytes.WithLabelValues(string(service), "out").Add(float64(n))
}

func (s *Server) ServiceRPCHandler(c *gin.Context) {
	service, _ := requestService(c)
	handle := handleOf(c)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Push too large"})
			return
		}
		utils.Log("Error reading body: %v", err)
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	metrics.ServiceBytes.WithLabelValues(string(service), "in").Add(float64(len(body)))

	resp := protocol.NewResponder(service, protocol.Result, handle).ServiceRPC(c.Request.Context(), body)
	if resp.Err != nil {
		utils.LogError("%s for %s failed: %v", service, handle.Location, resp.Err)
	}
	n, err := resp.Send(c.Writer)
	if err != nil {
		utils.LogDebug("Writing %s result: %v", service, err)
	}
	metrics.ServiceBytes.WithLabelValues(string(service), "out").Add(float64(n))

	if service == protocol.ReceivePack && resp.Status == http.StatusOK {
		metrics.Pushes.Inc()
		repo := c.MustGet(keyRecord).(*store.Repository)
		utils.Log("Push received for %s from %s", repo, c.GetString(keyRequester))
		if s.Notifier.Enabled() {
			s.Notifier.PublishAsync(notify.Event{
				Owner:      repo.Owner,
				Repository: repo.Name,
				Pusher:     c.GetString(keyRequester),
				Status:     handle.LatestStatus(c.Request.Context()),
			})
		}
	}
}

// Entry is one object of a browsing listing.
type Entry struct {
	Kind          git.Kind `json:"kind"`
	Path          string   `json:"path"`
	Name          string   `json:"name"`
	Subject       string   `json:"subject"`
	CommitterDate string   `json:"committer_date,omitempty"`
}

// BlobEntry adds the committer and the contents to an Entry.
type BlobEntry struct {
	Entry
	CommitterName  string `json:"committer_name"`
	CommitterEmail string `json:"committer_email"`
	Size           int    `json:"size"`
	Content        string `json:"content"`
}

func objectPath(o git.Object) string {
	switch v := o.(type) {
	case *git.Blob:
		return v.Path
	case *git.Tree:
		return v.Path
	case *git.Commit:
		return v.Hash
	}
	return ""
}

func objectName(o git.Object) string {
	switch v := o.(type) {
	case *git.Blob:
		return v.Name()
	case *git.Tree:
		return v.Name()
	case *git.Commit:
		return v.Short()
	}
	return ""
}

func formatDate(ctx context.Context, o git.Object) string {
	t, err := o.CommitterDate(ctx)
	if err != nil {
		return ""
	}
	return git.FormatUTC(t)
}

// describe reads the metadata of objects with at most limit git processes
// in flight.
func describe(ctx context.Context, objects []git.Object, limit int) []Entry {
	entries := make([]Entry, len(objects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))
	for i, o := range objects {
		g.Go(func() error {
			entries[i] = Entry{
				Kind:          o.Kind(),
				Path:          objectPath(o),
				Name:          objectName(o),
				Subject:       o.Subject(gctx),
				CommitterDate: formatDate(gctx, o),
			}
			return nil
		})
	}
	_ = g.Wait()
	return entries
}

func (s *Server) listing(c *gin.Context, rev string) gin.H {
	handle := handleOf(c)
	return gin.H{
		"owner":      c.GetString(keyOwner),
		"repository": c.GetString(keyRepository),
		"rev":        rev,
		"status":     handle.LatestStatus(c.Request.Context()),
	}
}

// TreeHandler lists a directory: the root at HEAD, the root at a revision or
// a subdirectory.
func (s *Server) TreeHandler(c *gin.Context) {
	ctx := c.Request.Context()
	handle := handleOf(c)
	rev := c.Param("rev")
	if rev == "" {
		rev = git.DefaultRevision
	}

	var objects []git.Object
	if path := strings.Trim(c.Param("path"), "/"); path == "" {
		objects = handle.Tree(ctx, false, rev)
	} else {
		objects = git.NewTree(handle, rev, path).Show(ctx)
	}

	payload := s.listing(c, rev)
	payload["objects"] = describe(ctx, objects, s.Config.StatsConcurrency)
	c.JSON(http.StatusOK, payload)
}

func (s *Server) BlobHandler(c *gin.Context) {
	ctx := c.Request.Context()
	path := strings.Trim(c.Param("path"), "/")
	if path == "" {
		notFound(c)
		return
	}
	rev := c.Param("rev")
	blob := git.NewBlob(handleOf(c), rev, path)

	content := blob.Show(ctx)
	subject := blob.Subject(ctx)
	if len(content) == 0 && subject == "" {
		notFound(c)
		return
	}

	payload := s.listing(c, rev)
	payload["object"] = BlobEntry{
		Entry: Entry{
			Kind:          blob.Kind(),
			Path:          blob.Path,
			Name:          blob.Name(),
			Subject:       subject,
			CommitterDate: formatDate(ctx, blob),
		},
		CommitterName:  blob.CommitterName(ctx),
		CommitterEmail: blob.CommitterEmail(ctx),
		Size:           len(content),
		Content:        string(content),
	}
	c.JSON(http.StatusOK, payload)
}

// ReadmeHandler returns the raw README text for client-side rendering.
func (s *Server) ReadmeHandler(c *gin.Context) {
	blob := git.NewBlob(handleOf(c), c.Param("rev"), c.Param("path"))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", blob.Show(c.Request.Context()))
}

func (s *Server) CommitsStatsHandler(c *gin.Context) {
	engine := stats.NewEngine(handleOf(c), git.DefaultRevision)
	engine.Concurrency = s.Config.StatsConcurrency

	summary, err := engine.Summary(c.Request.Context())
	if err != nil {
		utils.LogError("Commit statistics failed: %v", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Statistics unavailable"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) BranchesHandler(c *gin.Context) {
	ctx := c.Request.Context()
	handle := handleOf(c)
	branches := handle.Branches(ctx)
	if branches == nil {
		branches = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"head":     handle.Head(ctx),
		"branches": branches,
		"count":    len(branches),
	})
}

// CommitSummary is one line of the commits view.
type CommitSummary struct {
	Hash      string `json:"hash"`
	Subject   string `json:"subject"`
	Committer string `json:"committer"`
	Date      string `json:"date,omitempty"`
}

// CommitsHandler lists the commits of every branch.
func (s *Server) CommitsHandler(c *gin.Context) {
	ctx := c.Request.Context()
	handle := handleOf(c)

	byBranch := make(map[string][]CommitSummary)
	for _, branch := range handle.Branches(ctx) {
		commits := handle.Commits(ctx, branch)
		summaries := make([]CommitSummary, len(commits))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(s.Config.StatsConcurrency, 1))
		for i, commit := range commits {
			g.Go(func() error {
				summaries[i] = CommitSummary{
					Hash:      commit.Hash,
					Subject:   commit.Subject(gctx),
					Committer: commit.CommitterName(gctx),
					Date:      formatDate(gctx, commit),
				}
				return nil
			})
		}
		_ = g.Wait()
		byBranch[branch] = summaries
	}

	c.JSON(http.StatusOK, gin.H{
		"owner":      c.GetString(keyOwner),
		"repository": c.GetString(keyRepository),
		"commits":    byBranch,
	})
}

func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
