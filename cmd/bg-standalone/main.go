package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/barguni/barguni-api/internal/asset"
	"github.com/barguni/barguni-api/internal/config"
	"github.com/barguni/barguni-api/internal/event"
	"github.com/barguni/barguni-api/internal/http"
	"github.com/barguni/barguni-api/internal/imagefetch"
	"github.com/barguni/barguni-api/internal/imagesearch"
	"github.com/barguni/barguni-api/internal/log"
	"github.com/barguni/barguni-api/internal/lookup"
	"github.com/barguni/barguni-api/internal/relay"
	"github.com/barguni/barguni-api/internal/repository"
	"github.com/barguni/barguni-api/internal/service"
	"github.com/barguni/barguni-api/internal/storage/db"
	"github.com/barguni/barguni-api/internal/storage/mq"
	"github.com/barguni/barguni-api/internal/telemetry"
	"github.com/barguni/barguni-api/pkg/cmdutil"
	"github.com/barguni/barguni-api/pkg/validator"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("error running standalone application: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	time.Local = time.UTC

	type Config struct {
		Log         config.Log
		Postgres    config.Postgres
		HTTP        config.HTTP
		Relay       config.Relay
		Kafka       config.Kafka
		Otel        config.Otel
		Lookup      config.Lookup
		ImageSearch config.ImageSearch
		ImageFetch  config.ImageFetch
		Asset       config.Asset
		Pipeline    config.Pipeline
	}
	cfg, err := config.New[Config]()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logger := log.NewSlogLogger(cfg.Log)

	cleanupTracer, err := telemetry.InitTracer(ctx, cfg.Otel)
	if err != nil {
		return fmt.Errorf("error initializing tracer: %w", err)
	}
	defer func() {
		if err := cleanupTracer(ctx); err != nil {
			logger.ErrorContext(ctx, "error cleaning up tracer", slog.Any("error", err))
		}
	}()

	pgxPool, err := db.NewPgxPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("error creating pgx pool: %w", err)
	}
	defer pgxPool.Close()

	dbClient := db.NewClient(pgxPool)

	kafkaProducer, err := mq.NewKafkaProducer(ctx, cfg.Kafka)
	if err != nil {
		return fmt.Errorf("error creating kafka producer: %w", err)
	}
	defer kafkaProducer.Close()

	kafkaConsumer, err := mq.NewKafkaConsumer(ctx, cfg.Kafka, logger)
	if err != nil {
		return fmt.Errorf("error creating kafka consumer: %w", err)
	}
	defer kafkaConsumer.Close()

	productRepository := repository.NewProductRepository(dbClient)
	pictureRepository := repository.NewPictureRepository(dbClient)
	outboxMsgRepository := repository.NewOutboxMsgRepository(dbClient)

	providers, err := lookup.NewProviders(cfg.Lookup, nil)
	if err != nil {
		return fmt.Errorf("error creating lookup providers: %w", err)
	}
	nameResolver := lookup.NewResolver(logger, cfg.Lookup.Timeout, providers...)
	imageSearcher := imagesearch.NewNaverClient(cfg.ImageSearch, nil)
	imageFetcher := imagefetch.NewFetcher(cfg.ImageFetch, nil)

	fileStore, err := asset.NewFileStore(cfg.Asset.Dir)
	if err != nil {
		return fmt.Errorf("error creating asset file store: %w", err)
	}
	assetStore := asset.NewStore(logger, fileStore, pictureRepository, cfg.Asset.BaseURL)

	productService := service.NewProductService(
		cfg.Pipeline, logger, dbClient,
		productRepository, outboxMsgRepository,
		nameResolver, imageSearcher, imageFetcher, assetStore,
	)
	pictureService := service.NewPictureService(assetStore)

	v, err := validator.NewDefaultValidator()
	if err != nil {
		return fmt.Errorf("error creating validator: %w", err)
	}

	interruptChan := cmdutil.InterruptChan()
	var wg sync.WaitGroup

	wg.Go(func() {
		svc := event.New(logger, kafkaConsumer)
		cleanup, err := svc.Run(ctx)
		if err != nil {
			panic(fmt.Errorf("error running event service: %w", err))
		}
		logger.InfoContext(ctx, "event service started")

		<-interruptChan

		logger.InfoContext(ctx, "event service is shutting down")
		cleanup()

		logger.InfoContext(ctx, "event service is stopped")
	})

	wg.Go(func() {
		svc := http.New(cfg.HTTP, logger, prometheus.DefaultRegisterer, prometheus.DefaultGatherer, http.Deps{
			Validator:  v,
			Health:     dbClient,
			ProductSvc: productService,
			PictureSvc: pictureService,
		})
		cleanup, err := svc.Run(ctx)
		if err != nil {
			panic(fmt.Errorf("error running http service: %w", err))
		}

		logger.InfoContext(ctx, "http service started", slog.String("address", fmt.Sprintf(":%d", cfg.HTTP.Port)))

		<-interruptChan

		logger.InfoContext(ctx, "http service is shutting down")
		if err := cleanup(ctx); err != nil {
			logger.ErrorContext(ctx, "error shutting down http service", slog.Any("error", err))
		}

		logger.InfoContext(ctx, "http service is stopped")
	})

	wg.Go(func() {
		svc := relay.NewService(cfg.Relay, logger, dbClient, outboxMsgRepository, kafkaProducer)
		cleanup := svc.Run(ctx)
		logger.InfoContext(ctx, "relay service started")

		<-interruptChan

		logger.InfoContext(ctx, "relay service is shutting down")
		cleanup()

		logger.InfoContext(ctx, "relay service is stopped")
	})

	wg.Wait()

	return nil
}
