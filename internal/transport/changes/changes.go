package changes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alanyang/statesync/internal/adapter/memory"
	"github.com/alanyang/statesync/internal/domain/change"
	"github.com/alanyang/statesync/internal/port/session"
	"github.com/alanyang/statesync/internal/port/syncer"
)

// Register mounts the producer endpoints and the session listing.
func Register(rg *gin.RouterGroup, strategy syncer.Strategy, dir *memory.Registry) {
	rg.GET("/sessions", listSessions(dir))
	rg.POST("/sessions/:id/changes", notifySession(strategy, dir))
	rg.POST("/changes", notifyAll(strategy, dir))
}

type sessionResp struct {
	ID        string `json:"id"`
	Transport string `json:"transport"`
	Active    bool   `json:"active"`
}

func listSessions(dir *memory.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries := dir.List()
		out := make([]sessionResp, 0, len(entries))
		for _, e := range entries {
			out = append(out, sessionResp{ID: e.Session.ID(), Transport: e.Transport, Active: e.Session.Active()})
		}
		c.JSON(http.StatusOK, out)
	}
}

type changeReq struct {
	Op    string `json:"op" binding:"required"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

func bindChange(c *gin.Context) (change.Op, changeReq, bool) {
	var req changeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, req, false
	}
	op, err := change.ParseOp(req.Op)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "op must be one of: create, update, delete"})
		return 0, req, false
	}
	return op, req, true
}

// notifySession always answers 202: delivery is fire-and-forget and an
// unknown session is a no-op, not an error.
func notifySession(strategy syncer.Strategy, dir *memory.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		op, req, ok := bindChange(c)
		if !ok {
			return
		}

		sess, err := dir.Get(c.Param("id"))
		if err != nil && !errors.Is(err, memory.ErrNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		notify(c, strategy, sess, op, req)
		c.JSON(http.StatusAccepted, gin.H{"accepted": true})
	}
}

func notifyAll(strategy syncer.Strategy, dir *memory.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		op, req, ok := bindChange(c)
		if !ok {
			return
		}

		entries := dir.List()
		for _, e := range entries {
			notify(c, strategy, e.Session, op, req)
		}
		c.JSON(http.StatusAccepted, gin.H{"sessions": len(entries)})
	}
}

func notify(c *gin.Context, strategy syncer.Strategy, sess session.Session, op change.Op, req changeReq) {
	strategy.Notify(c.Request.Context(), sess, op, req.Path, req.Value)
}
