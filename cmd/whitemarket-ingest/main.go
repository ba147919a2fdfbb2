package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"csgo-market/internal/config"
	"csgo-market/internal/database"
	"csgo-market/internal/logger"
	"csgo-market/internal/market"
	"csgo-market/internal/services/whitemarket"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	var (
		interval = flag.Duration("interval", 0, "poll interval; zero runs a single cycle")
		timeout  = flag.Duration("timeout", 5*time.Minute, "deadline for one cycle")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer zlog.Sync()

	db, err := database.Initialize(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	}, zlog)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	store, err := market.NewStore(db, zlog, market.Options{IdentityCacheSize: cfg.IdentityCacheSize})
	if err != nil {
		zlog.Fatal("failed to build market store", zap.Error(err))
	}

	client := whitemarket.NewClient(cfg.WhitemarketURL, cfg.WhitemarketAPIToken, cfg.WhitemarketTimeout)
	ingester := whitemarket.NewIngester(client, store, zlog)

	runCycle := func() {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()
		if _, err := ingester.RunOnce(ctx); err != nil {
			zlog.Error("whitemarket cycle failed", zap.Error(err))
		}
	}

	runCycle()
	if *interval <= 0 {
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	zlog.Info("polling whitemarket", zap.Duration("interval", *interval))

	for {
		select {
		case <-sigChan:
			zlog.Info("shutdown signal received")
			return
		case <-ticker.C:
			runCycle()
		}
	}
}
