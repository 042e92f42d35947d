// Command migrate applies the embedded schema to PostgreSQL and ClickHouse.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"swing-backtest-lab/internal/config"
	"swing-backtest-lab/internal/storage/migrations"
	pgstore "swing-backtest-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	backend := flag.String("backend", "all", "Backend to migrate: postgres, clickhouse, all")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	dryRun := flag.Bool("dry-run", false, "Print the migration plan without connecting")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall timeout")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[migrate] ", log.LstdFlags)

	_ = godotenv.Load()
	if *postgresDSN == "" {
		*postgresDSN = os.Getenv(config.EnvPostgresDSN)
	}
	if *clickhouseDSN == "" {
		*clickhouseDSN = os.Getenv(config.EnvClickhouseDSN)
	}

	var backends []string
	switch *backend {
	case "all":
		if *postgresDSN != "" || *dryRun {
			backends = append(backends, migrations.BackendPostgres)
		}
		if *clickhouseDSN != "" || *dryRun {
			backends = append(backends, migrations.BackendClickhouse)
		}
		if len(backends) == 0 {
			logger.Fatal("--postgres-dsn or --clickhouse-dsn is required")
		}
	case migrations.BackendPostgres, migrations.BackendClickhouse:
		backends = []string{*backend}
	default:
		logger.Fatalf("Invalid backend: %s. Must be postgres, clickhouse, or all", *backend)
	}

	if *dryRun {
		for _, b := range backends {
			plan, err := migrations.Plan(b)
			if err != nil {
				logger.Fatalf("plan %s: %v", b, err)
			}
			fmt.Printf("%s:\n", b)
			for _, m := range plan {
				fmt.Printf("  %s\n", m.Name)
			}
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	for _, b := range backends {
		switch b {
		case migrations.BackendPostgres:
			if *postgresDSN == "" {
				logger.Fatal("--postgres-dsn is required for backend postgres")
			}
			pool, err := pgstore.NewPool(ctx, *postgresDSN)
			if err != nil {
				logger.Fatalf("connect to postgres: %v", err)
			}
			applied, err := migrations.RunPostgresMigrations(ctx, pool)
			pool.Close()
			if err != nil {
				logger.Fatalf("postgres migrations: %v", err)
			}
			logger.Printf("postgres: applied %d migrations %v", len(applied), applied)

		case migrations.BackendClickhouse:
			if *clickhouseDSN == "" {
				logger.Fatal("--clickhouse-dsn is required for backend clickhouse")
			}
			conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
			if err != nil {
				logger.Fatalf("clickhouse migrations: %v", err)
			}
			_ = conn.Close()
			logger.Println("clickhouse: schema up to date")
		}
	}
}
