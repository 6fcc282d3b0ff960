package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/familyhub/aniversaris/internal/config"
	"github.com/familyhub/aniversaris/internal/pkg/logger"
	"github.com/familyhub/aniversaris/internal/repository/sqlstore"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	listOnly := flag.Bool("list", false, "list migrations and whether they are applied, without applying")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Must(cfg.Log.Level, cfg.Log.Format, "aniversaris-migrate")
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := sqlstore.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatal("connect", zap.Error(err))
	}
	defer db.Close()
	log.Info("connected to database", zap.String("dialect", string(db.Dialect())))

	if *listOnly {
		migrations, err := sqlstore.Migrations(db.Dialect())
		if err != nil {
			log.Fatal("read migrations", zap.Error(err))
		}
		applied, err := db.Applied(ctx)
		if err != nil {
			log.Fatal("read applied migrations", zap.Error(err))
		}
		pending := 0
		for _, m := range migrations {
			state := "applied"
			if !applied[m.Version] {
				state = "pending"
				pending++
			}
			fmt.Printf("  %-40s %s\n", m.Version, state)
		}
		fmt.Printf("Total: %d migrations, %d pending\n", len(migrations), pending)
		return
	}

	done, err := db.Migrate(ctx, log)
	if err != nil {
		log.Fatal("migrate", zap.Strings("applied", done), zap.Error(err))
	}
	log.Info("migrations complete", zap.Strings("applied", done))
}
