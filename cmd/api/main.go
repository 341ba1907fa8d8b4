package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/agromic/agrobot/backend/internal/config"
	"github.com/agromic/agrobot/backend/internal/handler"
	"github.com/agromic/agrobot/backend/internal/logging"
	"github.com/agromic/agrobot/backend/internal/model/persona"
	"github.com/agromic/agrobot/backend/internal/service/ai"
	"github.com/agromic/agrobot/backend/internal/service/chat"
	"github.com/agromic/agrobot/backend/internal/service/contact"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := logging.Init(cfg.Log)
	if err != nil {
		slog.Error("failed to initialize logging", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	personaStore := persona.NewMemoryStore(persona.WithModel(persona.Seed(), cfg.AI.Model()))

	// Without a credential every turn fails with the apology reply instead of
	// refusing to start.
	completer, err := ai.NewCompleter(ctx, cfg.AI)
	if err != nil {
		slog.Error("failed to initialize completion client", "provider", cfg.AI.Provider, "error", err)
		os.Exit(1)
	}
	if cfg.AI.HasCredential() {
		slog.Info("completion client ready", "provider", cfg.AI.Provider, "model", cfg.AI.Model())
	} else {
		slog.Warn("no API key configured, assistant replies will fail", "provider", cfg.AI.Provider)
	}

	chatService := chat.NewService(personaStore, completer, chat.Config{
		IdleTTL:        cfg.Session.IdleTTL,
		RequestTimeout: cfg.AI.RequestTimeout,
		Logger:         logger,
	})

	contactService := contact.NewService(contact.Config{
		SubmitDelay: cfg.Contact.SubmitDelay,
		ResetAfter:  cfg.Contact.ResetAfter,
		Logger:      logger,
	})
	defer contactService.Close()

	router := handler.NewRouter(personaStore, chatService, contactService, cfg.Server.AllowedOrigins, logger)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-chatService.StartSweeper(egCtx, cfg.Session.SweepInterval)
		return nil
	})
	eg.Go(func() error {
		return startServer(egCtx, cfg.Server, router)
	})

	if err := eg.Wait(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	slog.Info("AgroBot backend listening", "addr", addr)
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
