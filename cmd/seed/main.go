// Package main provides a CLI tool for seeding a fresh deployment: bulk
// daily OHLCV history into ClickHouse from a CSV, and optionally a demo
// account with a funded portfolio.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/paper-trader/internal/config"
	"github.com/paper-trader/internal/models"
	"github.com/paper-trader/internal/service"
	"github.com/paper-trader/internal/storage"
)

const insertBatchSize = 5000

func main() {
	var (
		file      = flag.String("file", "", "CSV file of daily bars: symbol,date,open,high,low,close,volume")
		demoEmail = flag.String("demo-email", "", "Create a demo account with this email")
		demoPass  = flag.String("demo-password", "", "Password for the demo account")
	)
	flag.Parse()

	if *file == "" && *demoEmail == "" {
		log.Fatal("Usage: seed -file bars.csv [-demo-email user@example.com -demo-password secret]")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	if *file != "" {
		if err := seedBars(ctx, cfg, *file); err != nil {
			log.Fatalf("Seeding bars failed: %v", err)
		}
	}

	if *demoEmail != "" {
		if err := seedDemoAccount(ctx, cfg, *demoEmail, *demoPass); err != nil {
			log.Fatalf("Seeding demo account failed: %v", err)
		}
	}
}

func seedBars(ctx context.Context, cfg *config.Config, file string) error {
	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	defer clickhouse.Close()

	barRepo := storage.NewBarRepository(clickhouse)
	quoteService := service.NewQuoteService(nil, nil, barRepo, nil)

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	total, err := loadCSV(ctx, quoteService, f)
	if err != nil {
		return err
	}

	log.Printf("Loaded %d bars from %s", total, file)
	return nil
}

func seedDemoAccount(ctx context.Context, cfg *config.Config, email, password string) error {
	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		return fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redis.Close()

	userRepo := storage.NewUserRepository(postgres)
	portfolioRepo := storage.NewPortfolioRepository(postgres)
	cacheService := storage.NewCacheService(redis, cfg.Cache.QuoteTTL)

	accounts, err := service.NewAccountService(userRepo, portfolioRepo, cacheService, cfg)
	if err != nil {
		return err
	}

	result, err := accounts.Register(ctx, &service.RegisterInput{
		Email:       email,
		Password:    password,
		DisplayName: "Demo Trader",
	})
	if err != nil {
		return err
	}

	log.Printf("Created demo account %s (user %s) with starting cash %s",
		email, result.User.ID, cfg.Trading.StartingCash)
	return nil
}

func loadCSV(ctx context.Context, quotes *service.QuoteService, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 7

	// Skip the header row if present
	first, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read CSV: %w", err)
	}

	total := 0
	batch := make([]*models.DailyBar, 0, insertBatchSize)

	if first[0] != "symbol" {
		bar, err := parseBar(first)
		if err != nil {
			return 0, err
		}
		batch = append(batch, bar)
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, fmt.Errorf("failed to read CSV: %w", err)
		}
		line++

		bar, err := parseBar(record)
		if err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		batch = append(batch, bar)

		if len(batch) >= insertBatchSize {
			if err := quotes.LoadBars(ctx, batch); err != nil {
				return total, err
			}
			total += len(batch)
			log.Printf("Inserted %d bars...", total)
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := quotes.LoadBars(ctx, batch); err != nil {
			return total, err
		}
		total += len(batch)
	}

	return total, nil
}

func parseBar(record []string) (*models.DailyBar, error) {
	date, err := time.Parse("2006-01-02", record[1])
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", record[1], err)
	}

	prices := make([]float64, 4)
	for i, field := range record[2:6] {
		value, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid price %q: %w", field, err)
		}
		prices[i] = value
	}

	volume, err := strconv.ParseUint(record[6], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid volume %q: %w", record[6], err)
	}

	return &models.DailyBar{
		Symbol: record[0],
		Date:   date,
		Open:   prices[0],
		High:   prices[1],
		Low:    prices[2],
		Close:  prices[3],
		Volume: volume,
	}, nil
}
