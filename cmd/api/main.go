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

	"github.com/altsignal/tickersent/config"
	"github.com/altsignal/tickersent/internal/api"
	"github.com/altsignal/tickersent/internal/classify"
	"github.com/altsignal/tickersent/internal/clients"
	"github.com/altsignal/tickersent/internal/logging"
	"github.com/altsignal/tickersent/internal/query"
	"github.com/altsignal/tickersent/internal/search"
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	logging.InitLogger()

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clients.InitValkey()
	defer clients.CloseValkey()

	engine := query.NewEngine(
		clients.GetAthenaClient(),
		cfg.AthenaDatabase,
		cfg.AthenaTable,
		cfg.AthenaOutputLocation,
		cfg.QueryPollInterval,
		cfg.QueryTimeout,
	)

	searchSvc := search.NewService(
		search.Config{
			Subreddits:       cfg.Subreddits,
			IgnoreKeywords:   cfg.IgnoreKeywords,
			MinPostScore:     cfg.MinPostScore,
			MinPostLength:    cfg.MinPostLength,
			MinCommentScore:  cfg.MinCommentScore,
			MinCommentLength: cfg.MinCommentLength,
			MaxItems:         cfg.SearchMaxItems,
			CommentsPerPost:  cfg.CommentsPerPost,
		},
		clients.GetRedditClient(),
		classify.NewSentimentClassifier(clients.GetComprehendClient(), cfg.ComprehendLanguage),
		classify.NewContentTypeClassifier(
			clients.GetSageMakerRuntimeClient(),
			cfg.SageMakerEndpoint,
			cfg.EnableContentTypeClassify,
			cfg.ContentTypeMinConfidence,
		),
	)

	handler := api.NewHandler(
		engine,
		searchSvc,
		api.NewValkeyRateLimiter(int64(cfg.SearchRateLimit)),
		cfg.Keywords,
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("[Main] API server listening",
			slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[Main] Server failed",
				slog.String("error", err.Error()))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}

	slog.Info("[Main] Shutting down API server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("[Main] Graceful shutdown failed",
			slog.String("error", err.Error()))
	}
}
