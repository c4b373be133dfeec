package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vytor/chessduel/internal/analysis"
	"github.com/vytor/chessduel/internal/api"
	"github.com/vytor/chessduel/internal/config"
	"github.com/vytor/chessduel/internal/db"
	"github.com/vytor/chessduel/internal/logger"
	"github.com/vytor/chessduel/internal/repository"
	"github.com/vytor/chessduel/internal/repository/memory"
	"github.com/vytor/chessduel/internal/repository/redisstore"
	"github.com/vytor/chessduel/internal/repository/sqlstore"
	"github.com/vytor/chessduel/internal/roster"
	"github.com/vytor/chessduel/internal/rules"
	"github.com/vytor/chessduel/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	jsonLogs := cfg.LogFormat == "json"
	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithJSON(jsonLogs),
		logger.WithColors(!jsonLogs),
	)
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	log.Info("chessduel server starting")
	log.Debug("addr=%s", cfg.Addr)
	log.Debug("store_backend=%s", cfg.StoreBackend)
	log.Debug("roster_path=%s", cfg.RosterPath)
	log.Debug("request_timeout=%v", cfg.RequestTimeout)
	log.Debug("history_limit=%d", cfg.HistoryLimit)
	log.Debug("analysis_enabled=%t", cfg.AnalysisEnabled())
	log.Debug("dev_mode=%t", cfg.DevMode)

	players, err := roster.Load(cfg.RosterPath)
	if err != nil {
		log.Error("failed to load roster: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := openStore(ctx, cfg)
	cancel()
	if err != nil {
		log.Error("failed to open %s store: %v", cfg.StoreBackend, err)
		os.Exit(1)
	}
	defer func() {
		log.Debug("closing store")
		if err := store.Close(); err != nil {
			log.Warn("store close: %v", err)
		}
	}()

	var analyzer analysis.Analyzer
	if cfg.AnalysisEnabled() {
		analyzer = analysis.New(cfg.AnalysisURL, cfg.AnalysisAPIKey, cfg.AnalysisTimeout)
	}

	sessionService := services.NewSessionService(services.SessionConfig{
		Secret:     []byte(cfg.SessionSecret),
		CookieName: cfg.SessionCookieName,
		MaxAge:     cfg.SessionMaxAge,
		Secure:     cfg.SecureCookies,
	}, players)
	ledgerService := services.NewLedgerService(store, players, cfg.HistoryLimit)
	matchService := services.NewMatchService(store, rules.NewChessEngine(), players, ledgerService)
	analysisService := services.NewAnalysisService(matchService, players, analyzer)

	srv := &api.Server{
		SessionService:  sessionService,
		MatchService:    matchService,
		LedgerService:   ledgerService,
		AnalysisService: analysisService,
		Store:           store,
		RequestTimeout:  cfg.RequestTimeout,
		AnalysisTimeout: cfg.AnalysisTimeout,
		DevMode:         cfg.DevMode,
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + cfg.AnalysisTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-stop:
		log.Info("received signal %v, initiating graceful shutdown", sig)
	case err := <-errCh:
		log.Error("HTTP server error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error: %v", err)
	}

	log.Info("chessduel server stopped")
}

func openStore(ctx context.Context, cfg config.Config) (repository.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		logger.Warn("using the in-memory store; state is lost on restart")
		return memory.New(), nil
	case config.BackendSQLite:
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return sqlstore.New(database), nil
	case config.BackendPostgres:
		database, err := db.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return sqlstore.New(database), nil
	case config.BackendRedis:
		return redisstore.Open(ctx, cfg.RedisURL, cfg.RedisKeyPrefix)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
