package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"omni/go-backend/internal/composition/omnid"
	"omni/go-backend/internal/config"
	"omni/go-backend/internal/platform/privacylog"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	listen := flag.String("listen", "", "HTTP listen address, host:port or multiaddr")
	grpcListen := flag.String("grpc-listen", "", "gRPC listen address (optional)")
	keyFile := flag.String("key-file", "", "Mnemonic key file, created when missing")
	flag.Parse()
	if *showVersion {
		fmt.Printf("omni-server version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	logger := slog.New(privacylog.WrapHandler(slog.NewJSONHandler(os.Stderr, nil)))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("omni-server config: %v", err)
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *grpcListen != "" {
		cfg.Server.GRPCListen = *grpcListen
	}
	if *keyFile != "" {
		cfg.Server.KeyFile = *keyFile
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := omnid.New(cfg, omnid.Options{Version: version, Logger: logger})
	if err != nil {
		log.Fatalf("omni-server failed to initialize: %v", err)
	}

	logger.Info("omni-server starting", "component", "main", "version", version, "commit", commit)
	if err := d.Run(ctx); err != nil {
		log.Fatalf("omni-server failed: %v", err)
	}
	logger.Info("omni-server stopped", "component", "main")
}
