package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/familyhub/aniversaris/internal/api"
	"github.com/familyhub/aniversaris/internal/app"
	"github.com/familyhub/aniversaris/internal/assistant"
	"github.com/familyhub/aniversaris/internal/config"
	"github.com/familyhub/aniversaris/internal/photos"
	"github.com/familyhub/aniversaris/internal/pkg/logger"
	"github.com/familyhub/aniversaris/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	withScheduler := flag.Bool("scheduler", false, "also run the daily notification jobs in this process")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Must(cfg.Log.Level, cfg.Log.Format, "aniversaris-server")
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("initialize services", zap.Error(err))
	}
	defer a.Close()

	deps := api.Deps{
		Registry:      a.Registry,
		Importer:      a.Importer,
		Selector:      a.Selector,
		Notifier:      a.Notifier,
		Notifications: a.Notifications,
		Settings:      a.Settings,
		Guard:         a.Guard,
		Metrics:       a.Metrics,
		Logger:        log.Named("api"),
	}

	if cfg.Bedrock.Enabled {
		client, err := assistant.NewBedrockClient(ctx, cfg.Bedrock)
		if err != nil {
			log.Warn("bedrock unavailable, chat disabled", zap.Error(err))
		} else {
			deps.Assistant = assistant.New(client, a.Registry, a.Settings, cfg.Bedrock, log.Named("assistant"))
			log.Info("chat assistant enabled", zap.String("model", cfg.Bedrock.ModelID))
		}
	}

	var s3Client *s3.Client
	if cfg.Photos.Enabled() {
		s3Client, err = photos.NewS3Client(ctx, cfg.Photos)
		if err != nil {
			log.Warn("s3 unavailable, photo uploads disabled", zap.Error(err))
		} else {
			deps.Photos = photos.NewStore(s3Client, a.Registry, cfg.Photos, log.Named("photos"))
			log.Info("photo uploads enabled", zap.String("bucket", cfg.Photos.Bucket))
		}
	}

	deps.Health = api.NewHealthChecker(a.DB.DB, a.Redis, s3Client, cfg.Photos.Bucket)
	server := api.NewServer(cfg.Server, deps)

	if *withScheduler {
		go worker.NewScheduler(a.Notifier, a.Calendar, cfg.Notify, log.Named("scheduler")).Start(ctx)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
		log.Info("starting server", zap.String("addr", addr))
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-done
	log.Info("shutting down")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}
