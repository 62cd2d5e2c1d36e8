package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/altsignal/tickersent/config"
	"github.com/altsignal/tickersent/internal/clients"
	"github.com/altsignal/tickersent/internal/collector"
	"github.com/altsignal/tickersent/internal/dedup"
	"github.com/altsignal/tickersent/internal/events"
	"github.com/altsignal/tickersent/internal/logging"
	"github.com/altsignal/tickersent/internal/relevance"
	"github.com/altsignal/tickersent/internal/storage"
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

	if err := events.InitProducer(cfg.KafkaBroker); err != nil {
		slog.Error("[Main] Failed to init Kafka producer",
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer events.CloseProducer()

	var checker collector.RelevanceChecker
	if cfg.EnableRelevanceCheck {
		checker = relevance.NewChecker(clients.GetOpenAIClient().Client, cfg.RelevanceModel)
	}

	c := collector.New(
		collector.Config{
			Subreddits:       cfg.Subreddits,
			Keywords:         cfg.Keywords,
			IgnoreKeywords:   cfg.IgnoreKeywords,
			MinPostScore:     cfg.MinPostScore,
			MinPostLength:    cfg.MinPostLength,
			MinCommentScore:  cfg.MinCommentScore,
			MinCommentLength: cfg.MinCommentLength,
			PostLimit:        cfg.PostLimit,
			CommentsPerPost:  cfg.CommentsPerPost,
			GraceWindow:      cfg.GraceWindow,
			RawBucket:        cfg.RawBucket,
		},
		clients.GetRedditClient(),
		dedup.NewStore(clients.GetDynamoDBClient(), cfg.DedupTable, cfg.PipelineName),
		storage.NewS3Store(clients.GetS3Client(), cfg.RawBucket, cfg.ProcessedBucket),
		&events.KafkaPublisher{},
		checker,
	)

	runOnce := func() {
		result, err := c.Collect(ctx)
		if err != nil {
			slog.Error("[Main] Collection run failed",
				slog.String("error", err.Error()))
			return
		}
		slog.Info("[Main] Collection run finished",
			slog.Int("accepted", len(result.Accepted)),
			slog.Int("rejected", result.RejectedCount),
			slog.String("batch_key", result.BatchKey))
	}

	runOnce()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.CollectSchedule, runOnce); err != nil {
		slog.Error("[Main] Invalid collection schedule",
			slog.String("schedule", cfg.CollectSchedule),
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	scheduler.Start()
	slog.Info("[Main] Collector scheduled",
		slog.String("schedule", cfg.CollectSchedule))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	slog.Info("[Main] Shutting down collector")
	cancel()
	<-scheduler.Stop().Done()
}
