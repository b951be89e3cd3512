package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/Maharab24/Bottle-Collection/internal/catalog"
	"github.com/Maharab24/Bottle-Collection/internal/config"
	handler "github.com/Maharab24/Bottle-Collection/internal/handler/http"
	"github.com/Maharab24/Bottle-Collection/internal/view"
	"github.com/Maharab24/Bottle-Collection/internal/widget"
	"github.com/Maharab24/Bottle-Collection/pkg/health"
	"github.com/Maharab24/Bottle-Collection/pkg/middleware"
	"github.com/Maharab24/Bottle-Collection/pkg/tracing"
)

// App wires together all dependencies and runs the storefront. One App is
// one browsing context: it owns a widget board, a cart view and a header
// badge over the shared cart slot.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	origin         string
	backend        *Backend
	board          *widget.Board
	cartView       *view.CartView
	badge          *view.HeaderBadge
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	origin := uuid.NewString()
	logger = logger.With(slog.String("origin", origin))

	// Initialize OpenTelemetry tracing.
	tcfg := cfg.Tracing
	tcfg.ServiceName = handler.ServiceName
	tcfg.ServiceVersion = "0.1.0"
	tracerShutdown, err := tracing.InitTracer(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	backend, err := OpenBackend(ctx, cfg, origin, reg, logger)
	if err != nil {
		_ = tracerShutdown(context.Background())
		return nil, err
	}

	// Catalog is fetched once; a failure leaves the listing empty.
	src := catalog.NewSource(cfg.CatalogSource, cfg.CatalogTimeout())
	cat := catalog.Load(ctx, src, logger)

	st := backend.Store
	board := widget.NewBoard(cat.All(), st, widget.WithAckDuration(cfg.AckDuration()))
	cartView := view.NewCartView(ctx, st)
	badge := view.NewHeaderBadge(ctx, st)

	// Health checks.
	healthHandler := health.NewHandler()
	backend.RegisterChecks(healthHandler)
	healthHandler.RegisterNonCritical("catalog", func(context.Context) error {
		if cat.Len() == 0 {
			return errors.New("catalog is empty")
		}
		return nil
	})

	// HTTP router.
	h := handler.NewHandler(cat, st, board, cartView, badge, logger)
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	corsCfg.Environment = cfg.Environment
	router := handler.NewRouter(h, healthHandler, logger, handler.RouterConfig{
		Origin:     origin,
		CORS:       corsCfg,
		PprofCIDRs: cfg.PprofAllowedCIDRs,
		Registry:   reg,
	})

	// No WriteTimeout: the badge stream stays open.
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		origin:         origin,
		backend:        backend,
		board:          board,
		cartView:       cartView,
		badge:          badge,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Origin returns the browsing-context id of this process.
func (a *App) Origin() string { return a.origin }

// Run starts the HTTP server and the sync listener, and blocks until the
// context is canceled or either fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.backend.Store.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("cart sync: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	err := g.Wait()
	if shutdownErr := a.Shutdown(); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	return err
}

// Shutdown releases the components and connections. The HTTP server must
// already be stopped.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	a.board.Close()
	a.cartView.Close()
	a.badge.Close()

	if err := a.backend.Close(); err != nil {
		a.logger.Error("cart store close error", slog.String("error", err.Error()))
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracerShutdown(flushCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
