package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/familyhub/aniversaris/internal/api"
	"github.com/familyhub/aniversaris/internal/app"
	"github.com/familyhub/aniversaris/internal/config"
	"github.com/familyhub/aniversaris/internal/mcpserver"
	"github.com/familyhub/aniversaris/internal/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	transport := flag.String("transport", "stdio", "transport mode: stdio or http")
	addr := flag.String("addr", ":8081", "listen address (only used with -transport http)")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the protocol in stdio mode; console logs go to stderr.
	format := cfg.Log.Format
	if *transport == "stdio" {
		format = "console"
	}
	log := logger.Must(cfg.Log.Level, format, "aniversaris-mcp")
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("initialize services", zap.Error(err))
	}
	defer a.Close()

	srv := mcpserver.New(mcpserver.NewTools(a.Registry, cfg.App.Location()), api.Version)

	switch *transport {
	case "stdio":
		log.Info("mcp server starting (stdio)")
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatal("mcp server", zap.Error(err))
		}
	case "http":
		handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil)
		httpSrv := &http.Server{Addr: *addr, Handler: handler, ReadHeaderTimeout: 15 * time.Second}
		go func() {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			httpSrv.Shutdown(shutdownCtx)
		}()
		log.Info("mcp server listening", zap.String("addr", *addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("mcp http server", zap.Error(err))
		}
	default:
		log.Fatal("unknown transport, use stdio or http", zap.String("transport", *transport))
	}
}
