package apihttp

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fincore/internal/errs"
	"fincore/internal/fetcher"
	"fincore/internal/schema"
	"fincore/internal/stream"
)

const maxDrain = 1000

func describe(s fetcher.Stream) map[string]any {
	if d, ok := s.(interface{ Describe() map[string]any }); ok {
		return d.Describe()
	}
	return map[string]any{"id": s.ID(), "running": s.IsRunning()}
}

func (r *Router) lookup(c *gin.Context) (fetcher.Stream, bool) {
	s, ok := r.hub.Get(c.Param("id"))
	if !ok {
		writeError(c, errs.NotFound("no stream %s", c.Param("id")))
	}
	return s, ok
}

func (r *Router) handleStreams(c *gin.Context) {
	list := r.hub.List()
	out := make([]map[string]any, 0, len(list))
	for _, s := range list {
		out = append(out, describe(s))
	}
	c.JSON(http.StatusOK, gin.H{"streams": out})
}

func (r *Router) handleStream(c *gin.Context) {
	s, ok := r.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, describe(s))
}

type tailer interface {
	Tail(seq int64) ([]schema.Record, int64)
}

// handleStreamMessages returns up to limit buffered rows. With after=<seq>
// only rows pushed since that sequence are returned, along with the next one.
func (r *Router) handleStreamMessages(c *gin.Context) {
	s, ok := r.lookup(c)
	if !ok {
		return
	}
	limit := maxDrain
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = min(v, maxDrain)
	}
	if t, ok := s.(tailer); ok && c.Query("after") != "" {
		after, err := strconv.ParseInt(c.Query("after"), 10, 64)
		if err != nil || after < 0 {
			writeError(c, errs.Validation("after must be a non-negative integer"))
			return
		}
		rows, next := t.Tail(after)
		if len(rows) > limit {
			next -= int64(len(rows) - limit)
			rows = rows[:limit]
		}
		c.JSON(http.StatusOK, gin.H{"id": s.ID(), "running": s.IsRunning(), "results": rows, "next": next})
		return
	}
	rows := make([]schema.Record, 0, limit)
	for row := range s.Messages() {
		rows = append(rows, row)
		if len(rows) >= limit {
			break
		}
	}
	c.JSON(http.StatusOK, gin.H{"id": s.ID(), "running": s.IsRunning(), "results": rows})
}

// handleStreamCommand applies one control command, the same JSON the CLI
// reads from stdin.
func (r *Router) handleStreamCommand(c *gin.Context) {
	s, ok := r.lookup(c)
	if !ok {
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		writeError(c, errs.Validation("read command: %v", err))
		return
	}
	cmd, err := stream.ParseCommand(string(raw))
	if err != nil {
		writeError(c, errs.Validation("%v", err))
		return
	}
	if err := cmd.Apply(s); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, describe(s))
}

func (r *Router) handleStreamClose(c *gin.Context) {
	if !r.hub.Remove(c.Param("id")) {
		writeError(c, errs.NotFound("no stream %s", c.Param("id")))
		return
	}
	c.Status(http.StatusNoContent)
}
