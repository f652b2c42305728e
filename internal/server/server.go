package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/golang-migrate/migrate/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/hanbitlabs/rankwatch/config"
	"github.com/hanbitlabs/rankwatch/internal/rank"
	"github.com/hanbitlabs/rankwatch/internal/store"
)

// Run wires the store, the rank checker, the HTTP API and the refresh
// scheduler together and serves until the listener fails.
func Run(cfg *appconfig.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()
	dsn, err := cfg.Databases.Postgres.DSN()
	if err != nil {
		return err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: %w", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	secret := cfg.General.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (general.jwt_secret)")
	}

	fetcher := rank.NewClient(rank.ClientOptions{
		BaseURL:        cfg.Search.BaseURL,
		UserAgent:      cfg.Search.UserAgent,
		AcceptLanguage: cfg.Search.AcceptLanguage,
		Timeout:        cfg.Search.Timeout,
	})
	checker := rank.NewChecker(fetcher, rank.Windows{
		Smartblock: cfg.Search.SmartblockSize,
		MainBlog:   cfg.Search.MainBlogSize,
		BlogTab:    cfg.Search.BlogTabSize,
	})

	auth := &AuthHandler{Store: st, Secret: []byte(secret)}
	api := e.Group("/api")
	auth.Register(api.Group("/auth"))

	th := &TrackersHandler{
		Store:   st,
		Checker: checker,
		Limits:  cfg.Plans.TrackerLimits,
		Spacing: cfg.Search.RequestSpacing,
		Logger:  log.New(log.Writer(), "[RANK] ", log.LstdFlags),
	}
	th.Register(api.Group("/trackers"), auth.Secret)

	ch := &CheckHandler{Checker: checker}
	ch.Register(api.Group("/rank"), auth.Secret)

	if cfg.Scheduler.Enabled {
		if cfg.Databases.Redis.Host == "" || cfg.Databases.Redis.Port == "" {
			return fmt.Errorf("redis not configured (databases.redis.host/port)")
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Databases.Redis.Host, cfg.Databases.Redis.Port),
			Password: cfg.Databases.Redis.Pass,
			DB:       cfg.Databases.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s:%s): %w", cfg.Databases.Redis.Host, cfg.Databases.Redis.Port, err)
		}
		sched := &Scheduler{
			Store:   st,
			Checker: checker,
			Rdb:     rdb,
			Cron:    cfg.Scheduler.Cron,
			Spacing: cfg.Search.RequestSpacing,
			Stop:    make(chan struct{}),
			Logger:  log.New(log.Writer(), "[SCHED] ", log.LstdFlags),
		}
		sched.Start(cfg.Scheduler.Interval)
	}

	if addr == "" {
		addr = cfg.General.Listen
		if addr != "" && addr[0] != ':' {
			addr = ":" + addr
		}
		if addr == "" {
			addr = ":10020"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
