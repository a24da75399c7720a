package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"weft/internal/capture"
	"weft/internal/catalog"
	"weft/internal/config"
	"weft/internal/daemon"
	"weft/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	captureStore, err := capture.Open(cfg)
	if err != nil {
		logger.Error("open capture store", logging.Error(err))
		return
	}
	catalogStore, err := catalog.Open(cfg)
	if err != nil {
		logger.Error("open catalog store", logging.Error(err))
		_ = captureStore.Close()
		return
	}

	d, err := daemon.New(cfg, captureStore, catalogStore, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		_ = captureStore.Close()
		_ = catalogStore.Close()
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("weftd shutting down")
}
