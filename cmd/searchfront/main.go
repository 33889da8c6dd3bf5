package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchfront/internal/config"
	dbRedis "github.com/kailas-cloud/searchfront/internal/db/redis"
	logpkg "github.com/kailas-cloud/searchfront/internal/logger"
	"github.com/kailas-cloud/searchfront/internal/metrics"
	"github.com/kailas-cloud/searchfront/internal/repository/snapshot"
	"github.com/kailas-cloud/searchfront/internal/transport/backend"
	chiTransport "github.com/kailas-cloud/searchfront/internal/transport/chi"
	healthuc "github.com/kailas-cloud/searchfront/internal/usecase/health"
	searchuc "github.com/kailas-cloud/searchfront/internal/usecase/search"
	viewuc "github.com/kailas-cloud/searchfront/internal/usecase/view"
	"github.com/kailas-cloud/searchfront/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting searchfront API server",
		zap.String("commit", version.Commit),
		zap.String("build_date", version.Date),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.Strings("cache_addrs", cfg.Cache.Addrs),
	)

	// Register metrics explicitly (no init())
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Upstream search API, with identical in-flight queries shared across views.
	client, err := backend.NewClient(&backend.Config{
		BaseURL:      cfg.Backend.BaseURL,
		SearchPath:   cfg.Backend.SearchPath,
		HealthPath:   cfg.Backend.HealthPath,
		Token:        cfg.Backend.Token,
		Timeout:      cfg.Backend.Timeout(),
		NarrowSource: cfg.Backend.NarrowSource,
		BroadSource:  cfg.Backend.BroadSource,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatal("Failed to create backend client", zap.Error(err))
	}
	querier := backend.NewCoalescer(client)

	// Snapshot persistence is optional. Pass nil interfaces (not typed nil
	// pointers!) when it is off: (*snapshot.Store)(nil) wrapped in an
	// interface != nil.
	var (
		snapshots viewuc.SnapshotStore
		pinger    healthuc.StorePinger
	)
	if cfg.Cache.Enabled() {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.Cache.Addrs,
			Password:   cfg.Cache.Password,
			Standalone: cfg.Cache.Standalone,
		})
		if err != nil {
			logger.Fatal("Failed to create snapshot store", zap.Error(err))
		}
		defer store.Close()

		readiness := time.Duration(cfg.Cache.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, readiness); err != nil {
			logger.Fatal("Snapshot store not ready", zap.Error(err))
		}
		logger.Info("Connected to snapshot store")

		ttl := time.Duration(cfg.Cache.SnapshotTTLSec) * time.Second
		snapshots = snapshot.New(store, ttl, metrics.SnapshotStoreTotal, logger)
		pinger = store
	} else {
		logger.Info("Snapshot persistence disabled")
	}

	views := viewuc.New(querier, snapshots, clockwork.NewRealClock(), logger).
		WithRefinement(searchuc.Config{
			LoadingTimeout: cfg.Refinement.LoadingTimeout(),
			SecondGap:      cfg.Refinement.SecondGap(),
			ThirdGap:       cfg.Refinement.ThirdGap(),
		}).
		WithLimits(
			cfg.Views.MaxViews,
			time.Duration(cfg.Views.IdleTTLSec)*time.Second,
			time.Duration(cfg.Views.SweepIntervalSec)*time.Second,
		).
		WithPagination(cfg.Views.DefaultPageSize, cfg.Views.MaxPageSize)
	go views.Run(ctx)

	healthSvc := healthuc.New(client, pinger)

	server := chiTransport.NewServer(views, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	// Closing the views ends open streams, whose connections Shutdown does not track.
	views.Shutdown()

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.String("path", r.URL.Path),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.CodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line. For streams it is written when the stream ends.
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", routePattern(r)),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
