package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"recipes_api/internal/auth"
	"recipes_api/internal/config"
	"recipes_api/internal/handler"
	"recipes_api/internal/metrics"
	"recipes_api/internal/service"
	"recipes_api/internal/storage"
	"recipes_api/internal/storage/memory"
	"recipes_api/internal/storage/postgres"
	"recipes_api/internal/storage/restdb"
)

const (
	envLocal = "local"
	envDev   = "dev"
)

func main() {
	//PARSE ARGS
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to the YAML config file")

	flag.Parse()
	if configPath == "" {
		log.Fatal("failed get config path from flags")
	}

	cfg := config.MustLoadConfig(configPath)

	//INIT LOGGER
	lgr := setupLogger(cfg.Env)
	lgr.Info("started recipes api",
		slog.String("env", cfg.Env),
		slog.String("store", cfg.Store.Driver),
		slog.String("password_scheme", cfg.Auth.PasswordScheme),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//INIT STORE
	st, err := newStorage(ctx, cfg)
	if err != nil {
		lgr.Error("failed to init store", slog.Any("error", err))
		os.Exit(1)
	}
	defer st.Close()

	m := metrics.New()
	st = metrics.InstrumentStorage(st, m)

	passwords, err := auth.NewPasswordScheme(cfg.Auth.PasswordScheme)
	if err != nil {
		lgr.Error("failed to init password scheme", slog.Any("error", err))
		os.Exit(1)
	}
	if passwords.Name() == auth.SchemePlain {
		lgr.Warn("passwords are stored and compared in plain text")
	}

	authn := auth.NewAuthenticator(st, auth.NewTokenManager(cfg.Auth.JWTSecret), passwords)
	srvc := service.NewService(st, authn, passwords, lgr)

	//INIT SERVER
	if cfg.Env != envLocal {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handler.NewHandler(srvc, lgr, m)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.ListenAddr(),
		Handler:      h.InitRoutes(),
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
	}

	go func() {
		lgr.Info("listening", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lgr.Error("server stopped", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lgr.Error("failed to shut down server", slog.Any("error", err))
	}
	lgr.Info("stopped recipes api")
}

func newStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.Store.Driver {
	case storage.DriverRestDB:
		return restdb.New(cfg.Store.URL, cfg.Store.APIKey, cfg.Store.Timeout)
	case storage.DriverPostgres:
		return postgres.NewPostgresStorage(ctx, cfg.Postgres.DbURL)
	case storage.DriverMemory:
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
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
	default: // prod
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
