package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/familyhub/aniversaris/internal/app"
	"github.com/familyhub/aniversaris/internal/config"
	"github.com/familyhub/aniversaris/internal/pkg/logger"
	"github.com/familyhub/aniversaris/internal/service/importer"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	exportPath := flag.String("export", "", "write the roster to this .xlsx file instead of importing")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: importer [-config file] <roster.xlsx|roster.json>\n")
		fmt.Fprintf(os.Stderr, "       importer [-config file] -export roster.xlsx\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *exportPath == "" && flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Must(cfg.Log.Level, cfg.Log.Format, "aniversaris-importer")
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("initialize services", zap.Error(err))
	}
	defer a.Close()

	if *exportPath != "" {
		if err := export(ctx, a, *exportPath); err != nil {
			log.Fatal("export", zap.Error(err))
		}
		log.Info("roster exported", zap.String("path", *exportPath))
		return
	}

	report, err := run(ctx, a, flag.Arg(0))
	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(report)
	}
	if err != nil {
		log.Fatal("import", zap.Error(err))
	}
}

func run(ctx context.Context, a *app.App, path string) (*importer.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, parseErrs, err := importer.Parse(path, f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	report, err := a.Importer.Import(ctx, records)
	if report != nil && len(parseErrs) > 0 {
		report.Failed = append(parseErrs, report.Failed...)
		report.Total += len(parseErrs)
	}
	return report, err
}

func export(ctx context.Context, a *app.App, path string) error {
	persons, err := a.Registry.List(ctx)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := importer.WriteXLSX(f, persons); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
