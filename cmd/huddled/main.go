package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/huddlehq/huddle/pkg/api"
	"github.com/huddlehq/huddle/pkg/config"
	"github.com/huddlehq/huddle/pkg/dualwrite"
	"github.com/huddlehq/huddle/pkg/middleware"
	"github.com/huddlehq/huddle/pkg/observability"
	"github.com/huddlehq/huddle/pkg/rbac"
	"github.com/huddlehq/huddle/pkg/storage/mongo"
	"github.com/huddlehq/huddle/pkg/storage/postgres"
	"github.com/huddlehq/huddle/pkg/tasks"
	"github.com/huddlehq/huddle/pkg/teams"
)

const (
	roleCacheSize = 4096
	roleCacheTTL  = 30 * time.Second
)

func main() {
	// Missing .env is fine; env vars win either way
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	health := observability.NewHealthChecker()

	// Primary store
	client, err := mongo.NewClient(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			logger.WithError(err).Warn("failed to close mongodb connection")
		}
	}()
	if err := client.EnsureIndexes(ctx); err != nil {
		return err
	}
	health.AddCritical("mongodb", client)

	teamRepo := mongo.NewTeamRepository(client)
	membershipRepo := mongo.NewMembershipRepository(client)
	roleRepo := mongo.NewRoleRepository(client)
	taskRepo := mongo.NewTaskRepository(client)
	assignmentRepo := mongo.NewAssignmentRepository(client)
	inviteStore := mongo.NewInviteCodeStore(client)
	ledger := mongo.NewSyncLedger(client)

	if err := roleRepo.EnsureBuiltinRoles(ctx); err != nil {
		return err
	}

	// Migration target. The service runs without it when dual-write is
	// off, reads stay on the primary store either way.
	var writer *postgres.Writer
	var reconciler *dualwrite.Reconciler
	if cfg.DualWrite.Enabled {
		pg, err := postgres.NewDB(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer pg.Close()
		if err := postgres.RunMigrations(ctx, pg.DB); err != nil {
			return err
		}
		health.AddOptional("postgres", pg)
		writer = postgres.NewWriter(pg)
	}

	mirror := dualwrite.NewMirror(writer, ledger, logger, metrics, cfg.DualWrite.Enabled)
	if cfg.DualWrite.Enabled && cfg.DualWrite.ReconcileSchedule != "" {
		reconciler = dualwrite.NewReconciler(writer, ledger, logger, metrics, cfg.DualWrite.ReconcileBatch)
		if err := reconciler.Start(cfg.DualWrite.ReconcileSchedule); err != nil {
			return err
		}
		defer reconciler.Stop()
		logger.WithField("schedule", cfg.DualWrite.ReconcileSchedule).Info("sync reconciler started")
	}

	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		rateLimiter = middleware.NewRateLimiter(redisClient, cfg.RateLimit, logger)
		health.AddOptional("redis", observability.ProbeFunc(rateLimiter.HealthCheck))
	}

	perms := rbac.NewService(membershipRepo, roleRepo, taskRepo, assignmentRepo, logger,
		rbac.WithMetrics(metrics),
		rbac.WithRoleCache(roleCacheSize, roleCacheTTL),
	)
	teamService := teams.NewService(teamRepo, membershipRepo, roleRepo, inviteStore, perms, mirror, logger)
	taskService := tasks.NewService(taskRepo, assignmentRepo, perms, mirror, logger)

	router := api.NewRouter(api.RouterDeps{
		Config:      cfg,
		Logger:      logger,
		Metrics:     metrics,
		Auth:        middleware.NewAuthMiddleware(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		RateLimiter: rateLimiter,
		Guard:       rbac.NewGuard(perms),
		Teams:       api.NewTeamHandlers(teamService),
		Tasks:       api.NewTaskHandlers(taskService),
	})

	appServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", health.Liveness)
	healthMux.HandleFunc("/readyz", health.Readiness)
	healthMux.Handle("/metrics", metrics.Handler())
	healthServer := &http.Server{
		Addr:        cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler:     healthMux,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", appServer.Addr).Info("api server listening")
		if err := appServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := appServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("api server shutdown failed")
		}
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("health server shutdown failed")
		}
		return nil
	})

	return g.Wait()
}
