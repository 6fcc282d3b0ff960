package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/familyhub/aniversaris/internal/app"
	"github.com/familyhub/aniversaris/internal/config"
	"github.com/familyhub/aniversaris/internal/pkg/logger"
	"github.com/familyhub/aniversaris/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	once := flag.Bool("once", false, "run the jobs that are due now and exit")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Must(cfg.Log.Level, cfg.Log.Format, "aniversaris-worker")
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("initialize services", zap.Error(err))
	}
	defer a.Close()

	scheduler := worker.NewScheduler(a.Notifier, a.Calendar, cfg.Notify, log.Named("scheduler"))

	if *once {
		ran := scheduler.Tick(ctx)
		log.Info("jobs finished", zap.Strings("ran", ran))
		return
	}

	log.Info("worker running",
		zap.String("timezone", cfg.App.Timezone),
		zap.Int("birthday_hour", cfg.Notify.BirthdayHour),
		zap.Int("reminder_hour", cfg.Notify.ReminderHour))
	scheduler.Start(ctx)
	log.Info("worker stopped")
}
