package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ooXavier/moowapp-server/internal/config"
	"github.com/ooXavier/moowapp-server/internal/server"
)

func main() {
	configPath := flag.String("config", envOr("MOOWAPP_CONFIG", "./moowapp.conf"), "path to the configuration file")
	flag.Parse()

	server.SetupLogging()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	stateDir := filepath.Dir(*configPath)
	if err := os.MkdirAll(cfg.DBPath, 0o755); err != nil {
		log.Fatalf("creating data directory %q: %v", cfg.DBPath, err)
	}

	sv, err := server.New(cfg, stateDir)
	if err != nil {
		log.Fatalf("initializing server: %v", err)
	}

	sv.Start()
	log.Printf("server: started with %d log source(s), live feed=%v", len(cfg.LogSources), cfg.LiveFeed)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("server: shutdown signal received")
	if err := sv.Shutdown(context.Background()); err != nil {
		log.Printf("server: shutdown error: %v", err)
	}
	log.Println("server: exited cleanly")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
