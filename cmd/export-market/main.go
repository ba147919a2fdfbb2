package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"csgo-market/internal/config"
	"csgo-market/internal/database"
	"csgo-market/internal/export"
	"csgo-market/internal/logger"
	"csgo-market/internal/market"

	"github.com/joho/godotenv"
)

func main() {
	out := flag.String("out", "market.xlsx", "output workbook path")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer zlog.Sync()

	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{})
	if err != nil {
		log.Fatalf("❌ connect: %v\n", err)
	}
	store, err := market.NewStore(db, zlog, market.Options{})
	if err != nil {
		log.Fatalf("❌ build store: %v\n", err)
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("❌ create %s: %v\n", *out, err)
	}
	defer f.Close()

	n, err := export.WriteXLSX(context.Background(), store, f)
	if err != nil {
		log.Fatalf("❌ export: %v\n", err)
	}
	fmt.Printf("✅ Exported %d items to %s\n", n, *out)
}
