// Package server exposes the pipeline over HTTP: a fetch trigger, an
// archive trigger, and health/provenance inspection.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/redlake/redlake/internal/logging"
	"github.com/redlake/redlake/internal/model"
	"github.com/redlake/redlake/internal/pipeline"
)

// Fetcher runs one fetch-and-enrich cycle.
type Fetcher interface {
	Fetch(ctx context.Context, subreddit, window string, limit int) model.FetchResult
}

// BatchEmitter stages a fetch result as NDJSON batches.
type BatchEmitter interface {
	Emit(ctx context.Context, posts []model.PostRecord, comments []model.CommentRecord) (string, string, error)
}

// ArchiveRunner executes one archiving cycle.
type ArchiveRunner interface {
	Run(ctx context.Context) []string
}

// RunLister reads back provenance entries.
type RunLister interface {
	Runs(ctx context.Context, limit int) ([]model.PipelineRunEntry, error)
}

// Server wires the HTTP entrypoints to the pipeline collaborators.
type Server struct {
	source   pipeline.Source
	fetcher  Fetcher
	emitter  BatchEmitter
	archiver ArchiveRunner
	runs     RunLister
}

// New assembles a Server. source may be nil when the content source is not
// configured; /fetch then reports a server error.
func New(source pipeline.Source, fetcher Fetcher, emitter BatchEmitter, archiver ArchiveRunner, runs RunLister) *Server {
	return &Server{source: source, fetcher: fetcher, emitter: emitter, archiver: archiver, runs: runs}
}

// fetchParams are read from the query string or a JSON body; body wins.
type fetchParams struct {
	Subreddit  string `json:"subreddit" form:"subreddit"`
	Limit      int    `json:"limit" form:"limit"`
	TimeFilter string `json:"time_filter" form:"time_filter"`
}

func (p *fetchParams) applyDefaults() {
	if p.Subreddit == "" {
		p.Subreddit = "technology"
	}
	if p.Limit <= 0 {
		p.Limit = 100
	}
	if p.TimeFilter == "" {
		p.TimeFilter = "year"
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
		})
	})

	router.GET("/fetch", s.handleFetch)
	router.POST("/fetch", s.handleFetch)
	router.POST("/archive", s.handleArchive)
	router.GET("/runs", s.handleRuns)

	return router
}

func (s *Server) handleFetch(c *gin.Context) {
	var params fetchParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.String(http.StatusBadRequest, "Bad Request: %s", err.Error())
		return
	}
	if c.Request.Method == http.MethodPost && c.Request.ContentLength > 0 {
		var body fetchParams
		if err := c.ShouldBindJSON(&body); err == nil {
			if body.Subreddit != "" {
				params.Subreddit = body.Subreddit
			}
			if body.Limit > 0 {
				params.Limit = body.Limit
			}
			if body.TimeFilter != "" {
				params.TimeFilter = body.TimeFilter
			}
		}
	}
	params.applyDefaults()

	if s.source == nil || !s.source.Available() {
		c.String(http.StatusInternalServerError, "Server Error: Reddit client failed.")
		return
	}

	logging.Info("fetch triggered",
		"subreddit", params.Subreddit, "limit", params.Limit, "time_filter", params.TimeFilter)

	result := s.fetcher.Fetch(c.Request.Context(), params.Subreddit, params.TimeFilter, params.Limit)

	// An explicit "nothing found" is never silently conflated with success;
	// callers can tell the two apart without inspecting counts.
	if len(result.Posts) == 0 {
		c.String(http.StatusOK, "No posts found in r/%s", params.Subreddit)
		return
	}

	postsFile, commentsFile, err := s.emitter.Emit(c.Request.Context(), result.Posts, result.Comments)
	if err != nil {
		c.String(http.StatusInternalServerError, "Server Error: %s", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "success",
		"ingestion_date": time.Now().UTC().Format("2006-01-02"),
		"data_range":     result.DateRange(),
		"posts_count":    len(result.Posts),
		"comments_count": len(result.Comments),
		"posts_file":     postsFile,
		"comments_file":  commentsFile,
	})
}

func (s *Server) handleArchive(c *gin.Context) {
	report := s.archiver.Run(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"report": report})
}

func (s *Server) handleRuns(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := s.runs.Runs(c.Request.Context(), limit)
	if err != nil {
		c.String(http.StatusInternalServerError, "Server Error: %s", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(entries),
		"runs":  entries,
	})
}

// Run starts the HTTP server on host:port and blocks.
func (s *Server) Run(host, port string) error {
	addr := fmt.Sprintf("%s:%s", host, port)
	logging.Info("starting server", "addr", addr)
	return s.Router().Run(addr)
}
