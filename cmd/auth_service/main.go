package main

import (
	"auth_service/internal/auth"
	"auth_service/internal/blacklist"
	"auth_service/internal/config"
	"auth_service/internal/handler"
	"auth_service/internal/service"
	"auth_service/internal/storage"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	//PARSE ARGS
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to config file")

	flag.Parse()
	if configPath == "" {
		log.Fatal("failed get config path from flags")
	}

	cfg := config.MustLoadConfig(configPath)

	//INIT LOGGER
	lgr := setupLogger(cfg.Env)
	lgr.Info("started auth service", slog.String("env", cfg.Env))

	if cfg.Env != envLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	//INIT DB
	st, err := setupStorage(cfg.DB)
	if err != nil {
		lgr.Error("failed to init storage", slog.Any("error", err))
		os.Exit(1)
	}

	rdb, err := setupRedis(cfg.Redis)
	if err != nil {
		lgr.Error("failed to connect to redis", slog.Any("error", err))
		st.Close()
		os.Exit(1)
	}

	//INIT SERVICE
	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret:          cfg.JWT.Secret,
		TTL:             cfg.JWT.TTL,
		RefreshTTL:      cfg.JWT.RefreshTTL,
		Issuer:          cfg.JWT.Issuer,
		SubjectProvider: cfg.JWT.SubjectProvider,
	})
	if err != nil {
		lgr.Error("failed to init token manager", slog.Any("error", err))
		os.Exit(1)
	}

	srvc := service.NewService(
		st,
		blacklist.NewRedisBlacklist(rdb, cfg.Redis.KeyPrefix),
		tokens,
		auth.NewPasswordHasher(cfg.Auth.BcryptCost),
	)

	//INIT SERVER
	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      handler.NewHandler(srvc, lgr).InitRoutes(),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	startServer(srv, lgr, func(err error) {
		lgr.Error("http server stopped", slog.Any("error", err))
		st.Close()
		_ = rdb.Close()
		os.Exit(1)
	})

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.HTTPServer.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			// Storage and redis outlive in-flight requests, so they close
			// only after the server has drained.
			"auth-service": func(ctx context.Context) error {
				lgr.Info("graceful shutdown initiated")

				err := srv.Shutdown(ctx)
				st.Close()
				return errors.Join(err, rdb.Close())
			},
		},
	)

	exitCode := <-wait
	lgr.Info("stopped auth service", slog.Int("exit_code", exitCode))
	os.Exit(exitCode)
}

// startServer serves in the background. fail receives any listener error
// other than the one a graceful shutdown causes.
func startServer(srv *http.Server, lgr *slog.Logger, fail func(error)) {
	go func() {
		lgr.Info("starting http server", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fail(err)
		}
	}()
}

func setupStorage(cfg config.DB) (storage.Storage, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := storage.MigratePostgres(ctx, cfg.DbURL); err != nil {
			return nil, err
		}
		return storage.NewPostgresStorage(cfg.DbURL)
	case config.DriverSQLite:
		return storage.NewSQLiteStorage(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.Driver)
	}
}

func setupRedis(cfg config.Redis) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.Index,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return rdb, nil
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
