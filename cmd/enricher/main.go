package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/altsignal/tickersent/config"
	"github.com/altsignal/tickersent/internal/classify"
	"github.com/altsignal/tickersent/internal/clients"
	"github.com/altsignal/tickersent/internal/enricher"
	"github.com/altsignal/tickersent/internal/events"
	"github.com/altsignal/tickersent/internal/logging"
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

	if err := events.InitConsumer(cfg.KafkaBroker, cfg.KafkaGroupID); err != nil {
		slog.Error("[Main] Failed to init Kafka consumer",
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer events.CloseConsumer()

	store := storage.NewS3Store(clients.GetS3Client(), cfg.RawBucket, cfg.ProcessedBucket)
	e := enricher.New(
		store,
		store,
		classify.NewSentimentClassifier(clients.GetComprehendClient(), cfg.ComprehendLanguage),
		classify.NewContentTypeClassifier(
			clients.GetSageMakerRuntimeClient(),
			cfg.SageMakerEndpoint,
			cfg.EnableContentTypeClassify,
			cfg.ContentTypeMinConfidence,
		),
		cfg.EnrichmentParallelism,
	)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		slog.Info("[Main] Shutting down enricher")
		cancel()
	}()

	slog.Info("[Main] Enricher started, waiting for batches")

	for {
		ref, msg, err := events.NextBatchRef(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("[Main] Consumer failed",
				slog.String("error", err.Error()))
			os.Exit(1)
		}

		outKey, err := e.Enrich(ctx, ref.Bucket, ref.Key)
		if err != nil {
			slog.Error("[Main] Batch enrichment failed, will retry on redelivery",
				slog.String("key", ref.Key),
				slog.String("error", err.Error()))
			continue
		}
		slog.Info("[Main] Batch enriched",
			slog.String("key", outKey))

		if err := events.CommitMessage(msg); err != nil {
			slog.Warn("[Main] Failed to commit offset",
				slog.String("key", ref.Key),
				slog.String("error", err.Error()))
		}
	}
}
