package wire

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alanyang/statesync/internal/adapter/memory"
	metricsadapter "github.com/alanyang/statesync/internal/adapter/metrics"
	pgdb "github.com/alanyang/statesync/internal/adapter/postgres"
	pgchannel "github.com/alanyang/statesync/internal/adapter/postgres/channel"
	"github.com/alanyang/statesync/internal/domain/change"

	"github.com/alanyang/statesync/internal/service/dispatch"
	"github.com/alanyang/statesync/internal/service/syncstrategy"

	"github.com/alanyang/statesync/internal/transport"
	mcptransport "github.com/alanyang/statesync/internal/transport/mcp"
	rpchandler "github.com/alanyang/statesync/internal/transport/rpc"
	wshandler "github.com/alanyang/statesync/internal/transport/ws"
)

// App holds the top-level resources needed to run and stop the server.
type App struct {
	Server   *http.Server
	Queue    *dispatch.Queue
	Strategy *syncstrategy.Service
	Sessions *memory.Registry
	Pool     *pgxpool.Pool
}

// Build is the composition root: the only place concrete types are wired to their
// interface dependencies.
func Build(ctx context.Context, cfg Config) (*App, error) {
	// ── Observability ─────────────────────────────────────────────────────────
	registry := prometheus.NewRegistry()
	collector := metricsadapter.NewCollector()

	// ── Dispatch ─────────────────────────────────────────────────────────────
	queue := dispatch.New(
		dispatch.WithMaxDepth(cfg.QueueMaxDepth),
		dispatch.WithCloseTimeout(cfg.ShutdownTimeout),
	)
	strategy := syncstrategy.NewService(queue, collector)

	if err := registry.Register(collector); err != nil {
		queue.Close()
		return nil, fmt.Errorf("registering delivery metrics: %w", err)
	}
	if err := registry.Register(metricsadapter.QueueDepthGauge(queue.Depth)); err != nil {
		queue.Close()
		return nil, fmt.Errorf("registering queue depth gauge: %w", err)
	}

	// ── Sessions ─────────────────────────────────────────────────────────────
	sessions := memory.NewRegistry()

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		p, err := pgdb.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			queue.Close()
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		pool = p
		sessions.Add(pgchannel.SessionID, pgchannel.New(pool))
		slog.Info("postgres mirror session registered", "channel", pgchannel.ChannelName(change.SyncChannel))
	}

	// ── Transport ─────────────────────────────────────────────────────────────
	hub := wshandler.NewHub(sessions, cfg.WSWriteTimeout)
	rpc := rpchandler.NewHandler(sessions, cfg.WSWriteTimeout)
	mcpServer := mcptransport.New(mcptransport.NewSessionRegistry(sessions), sessions, strategy)

	router := transport.NewRouter(strategy, sessions, hub, rpc, mcpServer, registry)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	slog.Info("application wired", "port", cfg.Port, "queue_max_depth", cfg.QueueMaxDepth)

	return &App{
		Server:   server,
		Queue:    queue,
		Strategy: strategy,
		Sessions: sessions,
		Pool:     pool,
	}, nil
}

// Close releases what Build acquired. Pending notifications are abandoned
// and a publish still in flight gets at most ShutdownTimeout to finish.
func (a *App) Close() {
	a.Queue.Close()
	if a.Pool != nil {
		a.Pool.Close()
	}
}
