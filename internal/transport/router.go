package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyang/statesync/internal/adapter/memory"
	"github.com/alanyang/statesync/internal/port/syncer"

	changeshandler "github.com/alanyang/statesync/internal/transport/changes"
	mcptransport "github.com/alanyang/statesync/internal/transport/mcp"
	rpchandler "github.com/alanyang/statesync/internal/transport/rpc"
	wshandler "github.com/alanyang/statesync/internal/transport/ws"
)

func NewRouter(
	strategy syncer.Strategy,
	dir *memory.Registry,
	hub *wshandler.Hub,
	rpc *rpchandler.Handler,
	mcpServer *mcptransport.Server,
	gatherer prometheus.Gatherer,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestLogger())
	r.Use(CORSMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")

	changeshandler.Register(api, strategy, dir)
	hub.Register(api.Group("/ws"))
	rpc.Register(api.Group("/rpc"))

	// Streamable HTTP uses GET, POST and DELETE on the same path.
	r.Any("/mcp", gin.WrapH(mcpServer.Handler()))

	return r
}
