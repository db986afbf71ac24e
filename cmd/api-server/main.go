package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hackgods/therapy-scheduling/internal/api"
	"github.com/hackgods/therapy-scheduling/internal/appointment"
	"github.com/hackgods/therapy-scheduling/internal/config"
	"github.com/hackgods/therapy-scheduling/internal/db"
	"github.com/hackgods/therapy-scheduling/internal/logging"
	"github.com/hackgods/therapy-scheduling/internal/notification"
	redisclient "github.com/hackgods/therapy-scheduling/internal/redis"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config load error: %v", err)
	}

	log := logging.New(cfg.Env, cfg.LogLevel)
	log.Infof("api-server starting in env=%s http_port=%s", cfg.Env, cfg.HTTPPort)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{
		MaxConns: cfg.PGMaxConns,
		MinConns: cfg.PGMinConns,
	})
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.ClientOptions{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		PoolSize: cfg.RedisPoolSize,
	})
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warnf("error closing redis: %v", err)
		}
	}()
	log.Info("connected to Redis")

	repo := appointment.NewPgRepository(pgPool)
	locker := redisclient.NewRedisDayLocker(rdb, redisclient.LockOptions{
		TTL:        cfg.LockTTL,
		Retries:    cfg.LockRetries,
		RetryDelay: cfg.LockRetryDelay,
	})
	baskets := redisclient.NewRedisBasketStore(rdb, cfg.BasketTTL)

	notifier := notification.NewDispatcher(notification.NewLogNotifier(log), log, 10*time.Second)
	defer notifier.Close()

	svc := appointment.NewService(repo, locker, baskets, notifier, cfg, log)

	router := api.NewRouter(api.RouterConfig{
		Service:  svc,
		Postgres: pgPool,
		Redis: api.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}),
		Logger:   log,
		Location: cfg.Location,
		Env:      cfg.Env,
		Version:  version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server forced to shutdown: %v", err)
	}

	log.Info("api-server stopped")
}
