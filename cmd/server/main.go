package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/iliyamo/qslx/internal/config"
	"github.com/iliyamo/qslx/internal/database"
	"github.com/iliyamo/qslx/internal/events"
	"github.com/iliyamo/qslx/internal/handler"
	"github.com/iliyamo/qslx/internal/logging"
	"github.com/iliyamo/qslx/internal/metrics"
	"github.com/iliyamo/qslx/internal/middleware"
	"github.com/iliyamo/qslx/internal/repository"
	"github.com/iliyamo/qslx/internal/router"
	"github.com/iliyamo/qslx/internal/session"
	"github.com/iliyamo/qslx/internal/view"
)

func main() {
	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel).With("app", "qslx", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log logging.Logger) error {
	// ---- Storage ----
	if cfg.DBDriver == config.DriverSQLite {
		if err := database.EnsureDir(cfg.SQLitePath); err != nil {
			return err
		}
	}
	db, err := database.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
		return err
	}
	log.Info(ctx, "database ready", "driver", cfg.DBDriver)

	contacts := repository.NewContactRepo(db)
	users := repository.NewUserRepo(db)

	// ---- Sessions ----
	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
		log.Info(ctx, "session revocation enabled", "redis", cfg.Redis.Addr)
	} else {
		log.Warn(ctx, "redis unavailable; logout only clears the cookie")
	}
	revoker := session.NewRedisRevoker(rdb, cfg.Redis.Prefix)

	// ---- Events ----
	var pub events.Publisher = events.Nop{}
	if cfg.EventsEnabled {
		pub = events.NewRabbitPublisher(cfg.EventsURL, cfg.EventsQueue)
		log.Info(ctx, "contact events enabled", "queue", cfg.EventsQueue)
	}

	// ---- HTTP ----
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	renderer, err := view.New()
	if err != nil {
		return err
	}
	e.Renderer = renderer

	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			args := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if uid := middleware.UserID(c); uid != "" {
				args = append(args, "user_id", uid)
			}
			if v.Error != nil {
				log.Error(c.Request().Context(), "request", append(args, "err", v.Error)...)
				return nil
			}
			log.Info(c.Request().Context(), "request", args...)
			return nil
		},
	}))

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		if m, err = metrics.New(reg); err != nil {
			return err
		}
		e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
			Subsystem:  "qslx",
			Registerer: reg,
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/metrics" || c.Path() == "/healthz"
			},
		}))
		e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: reg}))
	}

	gate := middleware.SessionConfig{
		Secret:  cfg.SessionSecret,
		Users:   users,
		Revoker: revoker,
		Log:     log,
	}
	contactHandler := handler.NewContactHandler(contacts, pub, m, log)
	authHandler := handler.NewAuthHandler(cfg, users, revoker, log)

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, authHandler, gate)
	router.RegisterAPI(e, contactHandler, gate)
	router.RegisterPages(e, handler.NewPageHandler(contactHandler, authHandler), gate)

	// ---- Serve ----
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info(ctx, "listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info(shutdownCtx, "shutting down")
	return e.Shutdown(shutdownCtx)
}
