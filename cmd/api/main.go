package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/characterai-go/internal/config"
	"github.com/zhouzirui/characterai-go/internal/handler"
	"github.com/zhouzirui/characterai-go/internal/model/character"
	"github.com/zhouzirui/characterai-go/internal/service/ai"
	"github.com/zhouzirui/characterai-go/internal/service/chat"
	"github.com/zhouzirui/characterai-go/pkg/cai"
	"github.com/zhouzirui/characterai-go/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// .env is optional
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg.Debug)
	defer func() { _ = log.Sync() }()

	if envErr != nil {
		log.Debug("no .env file loaded, using process environment", zap.Error(envErr))
	}
	if !cfg.CAI.Enabled() {
		log.Fatal("CAI_TOKEN is not configured")
	}

	client := cai.NewClient(cfg.CAI.ClientConfig(log.Named("cai")))
	if _, err := client.Ping(ctx); err != nil {
		log.Warn("character.ai ping failed, continuing", zap.Error(err))
	}

	characterStore := character.NewMemoryStore(nil)
	chatService := chat.NewService()
	aiService := ai.NewService(client, chatService, characterStore, cfg.CAI, log.Named("ai"))

	router := handler.NewRouter(chatService, aiService, log.Named("http"))

	startServer(ctx, log, cfg.Server, router)
}

func startServer(ctx context.Context, log *zap.Logger, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info("characterai gateway listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
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
