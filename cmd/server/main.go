package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/DoyleJ11/raffle-backend/internal/config"
	"github.com/DoyleJ11/raffle-backend/internal/history"
	"github.com/DoyleJ11/raffle-backend/internal/httpapi"
	"github.com/DoyleJ11/raffle-backend/internal/hub"
	"github.com/DoyleJ11/raffle-backend/internal/logging"
	"github.com/DoyleJ11/raffle-backend/internal/roster"
	"github.com/DoyleJ11/raffle-backend/internal/session"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	config.LoadEnvFiles()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Development())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	store, err := history.Open(ctx, cfg.HistoryDriver, cfg.HistoryDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	h := hub.NewHub(ctx, session.Config{
		Pacing: session.Pacing{
			Flicker: cfg.FlickerInterval,
			Reveal:  cfg.RevealDelay,
			Settle:  cfg.SettleDelay,
		},
		History: store,
		Logger:  logger,
	})

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(h, httpapi.Options{
		History:        store,
		Loader:         roster.NewLoader(cfg.MaxRows),
		MaxUploadBytes: cfg.MaxUploadBytes,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("history", cfg.HistoryDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		h.Shutdown()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
