package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/elera-assistant/console/internal/apiclient"
	"github.com/zhouzirui/elera-assistant/console/internal/config"
	"github.com/zhouzirui/elera-assistant/console/internal/handler"
	"github.com/zhouzirui/elera-assistant/console/internal/logging"
	"github.com/zhouzirui/elera-assistant/console/internal/model/tab"
	"github.com/zhouzirui/elera-assistant/console/internal/service/analytics"
	"github.com/zhouzirui/elera-assistant/console/internal/service/pipeline"
	"github.com/zhouzirui/elera-assistant/console/internal/service/review"
	"github.com/zhouzirui/elera-assistant/console/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("failed to load .env file, continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.Setup(cfg.Log)
	logger.Info().
		Str("backend", cfg.API.BaseURL).
		Str("voice_language", cfg.Voice.Language).
		Bool("voice_continuous", cfg.Voice.Continuous).
		Msg("configuration loaded")

	api := apiclient.New(cfg.API, logger)

	// 浏览器会话各自持有聊天、上下文与语音状态；看板、评审与管道为全局视图
	sessions := session.NewRegistry(api, logger)
	defer sessions.Close()

	router := handler.NewRouter(handler.Deps{
		Config:    cfg,
		Sessions:  sessions,
		VoiceAPI:  api,
		Analytics: analytics.NewService(api, nil, logger),
		Review:    review.NewService(api, logger),
		Pipeline:  pipeline.NewService(api, logger),
		Tabs:      tab.NewMemoryStore(tab.Seed()),
		Logger:    logger,
	})

	startServer(ctx, cfg.Server, router, logger)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger zerolog.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", addr).Msg("Elera console listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Error().Err(err).Msg("server error")
		return
	}
	logger.Info().Msg("server stopped")
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
