package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/fillbook/internal/reaper"
	"github.com/alanyoungcy/fillbook/internal/server"
	"github.com/alanyoungcy/fillbook/internal/server/handler"
	"github.com/alanyoungcy/fillbook/internal/server/ws"
	"github.com/alanyoungcy/fillbook/internal/service"
)

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// TradeMode runs the full engine: feeds, reconciliation, order submission and,
// when enabled, the stale-order reaper.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")
	return a.runEngine(ctx, deps, false)
}

// MonitorMode runs feeds and reconciliation only. Order endpoints answer
// with a read-only error and nothing is ever cancelled.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")
	return a.runEngine(ctx, deps, true)
}

func (a *App) runEngine(ctx context.Context, deps *Dependencies, readOnly bool) error {
	a.checkVenue(ctx, deps)

	e := newEngine(a.cfg, deps, readOnly, a.logger)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer e.fillFeed.Close()
		return e.fillFeed.Run(ctx)
	})
	g.Go(func() error {
		defer e.quoteFeed.Close()
		return e.quoteFeed.Run(ctx)
	})
	g.Go(func() error { return e.listing.Run(ctx) })
	g.Go(func() error { return e.reconcile.Run(ctx) })

	rc := a.cfg.Reconcile
	switch {
	case readOnly:
	case !rc.ReaperEnabled:
		a.logger.InfoContext(ctx, "reaper disabled")
	default:
		r := reaper.New(e.ledger, deps.Venue, deps.LockManager, deps.Notifier, reaper.Config{
			Threshold: rc.ReapThreshold.Duration,
			Interval:  rc.ReapInterval.Duration,
		}, a.logger)
		g.Go(func() error { return r.Run(ctx) })
	}

	if deps.Archiver != nil {
		job := service.NewArchiveJob(deps.Archiver, e.ledger, e.agg, a.cfg.Archive.Interval.Duration, a.logger)
		g.Go(func() error { return job.Run(ctx) })
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, e, readOnly)
	}

	return g.Wait()
}

// checkVenue logs whether the API and the venue answer their heartbeats. A
// failure is not fatal: the feeds and the poller retry on their own.
func (a *App) checkVenue(ctx context.Context, deps *Dependencies) {
	hbCtx, cancel := context.WithTimeout(ctx, a.cfg.Venue.RequestTimeout.Duration)
	defer cancel()

	if err := deps.Venue.Heartbeat(hbCtx); err != nil {
		a.logger.WarnContext(ctx, "venue api heartbeat failed", slog.String("error", err.Error()))
		return
	}
	if err := deps.Venue.VenueHeartbeat(hbCtx); err != nil {
		a.logger.WarnContext(ctx, "venue heartbeat failed",
			slog.String("venue", a.cfg.Venue.Venue),
			slog.String("error", err.Error()),
		)
		return
	}
	a.logger.InfoContext(ctx, "venue is up", slog.String("venue", a.cfg.Venue.Venue))
}

// pingFunc adapts a plain check to handler.Pinger.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func (a *App) healthChecks(deps *Dependencies) map[string]handler.Pinger {
	checks := map[string]handler.Pinger{
		"venue": pingFunc(deps.Venue.Heartbeat),
	}
	if deps.Postgres != nil {
		checks["postgres"] = deps.Postgres
	}
	if deps.Redis != nil {
		checks["redis"] = deps.Redis
	}
	if deps.S3 != nil {
		checks["s3"] = deps.S3
	}
	return checks
}

func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, e *engine, readOnly bool) {
	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, ws.Config{
			Mode:      a.cfg.Mode,
			StartedAt: time.Now().UTC(),
			Status:    func() any { return e.reconcile.FeedStatus() },
		}, a.logger)
		g.Go(func() error { return hub.Run(ctx) })
	} else {
		a.logger.InfoContext(ctx, "websocket relay disabled (redis not enabled)")
	}

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
			RateLimit:   a.cfg.Server.RateLimit,
		},
		server.Handlers{
			Health:     handler.NewHealthHandler(a.healthChecks(deps), a.logger),
			Status:     handler.NewStatusHandler(a.cfg.Mode, readOnly, e.reconcile),
			Orders:     handler.NewOrderHandler(e.orders, a.logger),
			Book:       handler.NewBookHandler(e.books, a.logger),
			MarketData: handler.NewMarketDataHandler(e.agg, e.books, a.logger),
		},
		hub,
		deps.RateLimiter,
		a.logger,
	)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
