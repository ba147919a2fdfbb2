package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"csgo-market/internal/database"
	"csgo-market/internal/logger"
	"csgo-market/internal/market"

	"github.com/joho/godotenv"
)

func main() {
	var (
		dsn      = flag.String("dsn", "", "database DSN (mysql DSN, postgres:// URL or sqlite://path)")
		dryRun   = flag.Bool("dry-run", false, "only list pending migrations, do not apply them")
		audit    = flag.Bool("audit", false, "run a read-only data audit after migrating")
		logLevel = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	// Load .env if exists
	_ = godotenv.Load()

	if *dsn == "" {
		*dsn = os.Getenv("DATABASE_URL")
		if *dsn == "" {
			log.Fatal("❌ --dsn is required, or set DATABASE_URL\n" +
				"usage: go run ./cmd/migrate-market-schema --dsn \"user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True\"")
		}
	}

	zlog, err := logger.New(*logLevel)
	if err != nil {
		log.Fatalf("❌ build logger: %v\n", err)
	}
	defer zlog.Sync()

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("🔄 Market schema migration")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf("\n📡 Connecting: %s\n", maskDSN(*dsn))
	db, err := database.Open(*dsn, database.PoolConfig{})
	if err != nil {
		log.Fatalf("❌ connect: %v\n", err)
	}

	pending, err := database.PendingMigrations(db)
	if err != nil {
		log.Fatalf("❌ read migration state: %v\n", err)
	}
	fmt.Printf("\n📊 Known migrations: %d, pending: %d\n", len(database.Migrations()), len(pending))
	for _, m := range pending {
		fmt.Printf("   • %03d %s\n", m.Version, m.Name)
	}

	if *dryRun {
		fmt.Println("\n💡 [DRY RUN] drop --dry-run to apply")
		return
	}

	if len(pending) == 0 {
		fmt.Println("\n✅ Schema is up to date")
	} else {
		start := time.Now()
		if err := database.Migrate(db, zlog); err != nil {
			log.Fatalf("❌ migrate: %v\n", err)
		}
		fmt.Printf("\n✅ Applied %d migration(s) in %v\n", len(pending), time.Since(start).Round(time.Millisecond))
	}

	if !*audit {
		return
	}

	store, err := market.NewStore(db, zlog, market.Options{})
	if err != nil {
		log.Fatalf("❌ build store: %v\n", err)
	}
	report, err := store.Audit(context.Background())
	if err != nil {
		log.Fatalf("❌ audit: %v\n", err)
	}

	fmt.Println("\n" + strings.Repeat("-", 80))
	fmt.Println("🔍 Audit")
	fmt.Println(strings.Repeat("-", 80))
	fmt.Printf("   items:               %d\n", report.Items)
	fmt.Printf("   snapshots:           %d\n", report.Snapshots)
	fmt.Printf("   invalid conditions:  %d\n", report.InvalidConditions)
	fmt.Printf("   unknown sources:     %d\n", report.UnknownSources)
	fmt.Printf("   observed_at ties:    %d\n", report.TimestampTies)
	fmt.Printf("   missing wide rows:   %d\n", report.MissingMarketData)
	fmt.Printf("   divergent groups:    %d\n", len(report.Divergences))

	if report.Clean() {
		fmt.Println("\n✅ No problems found")
		return
	}
	out, _ := json.MarshalIndent(report.Divergences, "   ", "  ")
	if len(report.Divergences) > 0 {
		fmt.Printf("\n   %s\n", out)
	}
	fmt.Println("\n⚠️  Problems found; nothing was changed")
	os.Exit(2)
}

func maskDSN(dsn string) string {
	if len(dsn) > 50 {
		return dsn[:20] + "****" + dsn[len(dsn)-20:]
	}
	if i := strings.Index(dsn, "://"); i >= 0 {
		return dsn[:i+3] + "****"
	}
	return "****"
}
