// Package statushttp serves the engine's health, metrics and latest
// activity reports over gin.
package statushttp

import (
	"net/http"
	"strings"

	"exalted/internal/state"
	"exalted/internal/trading"

	"github.com/gin-gonic/gin"
)

// CursorReader exposes the last processed signal id.
type CursorReader interface {
	Value() int64
}

// Waker requests an extra ingestion pass.
type Waker interface {
	Fire(reason string) bool
}

type Router struct {
	Board    *trading.Board
	Cursor   CursorReader
	Extremes *state.ExtremesFile
	Ingest   Waker
}

// Register mounts the routes on group (normally /api).
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/status", r.handleStatus)
	group.GET("/status/:activity", r.handleActivity)
	group.GET("/cursor", r.handleCursor)
	group.GET("/extremes", r.handleExtremes)
	if r.Ingest != nil {
		group.POST("/ingest", r.handleIngest)
	}
}

type statusResponse struct {
	Cursor  int64            `json:"cursor"`
	Reports []trading.Report `json:"reports"`
}

func (r *Router) cursor() int64 {
	if r.Cursor == nil {
		return 0
	}
	return r.Cursor.Value()
}

func (r *Router) handleStatus(c *gin.Context) {
	reports := r.Board.Snapshot()
	if reports == nil {
		reports = []trading.Report{}
	}
	c.JSON(http.StatusOK, statusResponse{Cursor: r.cursor(), Reports: reports})
}

func (r *Router) handleActivity(c *gin.Context) {
	name := strings.TrimSpace(c.Param("activity"))
	report, ok := r.Board.Latest(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no report for " + name})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (r *Router) handleCursor(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cursor": r.cursor()})
}

func (r *Router) handleExtremes(c *gin.Context) {
	if r.Extremes == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, r.Extremes.Load())
}

func (r *Router) handleIngest(c *gin.Context) {
	queued := r.Ingest.Fire("http")
	c.JSON(http.StatusAccepted, gin.H{"queued": queued})
}
