package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/xenking/chilirig-checkout/internal/geo"
	"github.com/xenking/chilirig-checkout/internal/pathao"
)

func main() {
	var (
		out         string
		baseURL     string
		concurrency int
		timeout     time.Duration
	)

	flag.StringVar(&out, "out", "geo.json.gz", "snapshot output path")
	flag.StringVar(&baseURL, "base-url", "", "courier API base URL (or PATHAO_BASE_URL env)")
	flag.IntVar(&concurrency, "concurrency", 4, "parallel zone and area requests")
	flag.DurationVar(&timeout, "timeout", 15*time.Second, "per-request timeout")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("load .env", slog.String("error", err.Error()))
	}
	if baseURL == "" {
		baseURL = os.Getenv("PATHAO_BASE_URL")
	}

	client, err := pathao.New(pathao.Config{
		BaseURL: baseURL,
		Credentials: pathao.Credentials{
			ClientID:     os.Getenv("PATHAO_CLIENT_ID"),
			ClientSecret: os.Getenv("PATHAO_CLIENT_SECRET"),
			Username:     os.Getenv("PATHAO_USERNAME"),
			Password:     os.Getenv("PATHAO_PASSWORD"),
		},
		HTTPClient: &http.Client{Timeout: timeout},
	})
	if err != nil {
		slog.Error("courier credentials are required: set PATHAO_CLIENT_ID, PATHAO_CLIENT_SECRET, PATHAO_USERNAME and PATHAO_PASSWORD")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, client, out, concurrency); err != nil {
		slog.Error("geo snapshot failed", slog.String("error", err.Error()))
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, client *pathao.Client, out string, concurrency int) error {
	if err := client.Ping(ctx); err != nil {
		return errors.Wrap(err, "authenticate")
	}

	start := time.Now()
	slog.Info("crawling courier geography", slog.Int("concurrency", concurrency))

	snap, err := geo.Crawl(ctx, client, concurrency, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "crawl")
	}

	if err := geo.Save(out, snap); err != nil {
		return errors.Wrap(err, "save")
	}

	cities, zones, areas := snap.Counts()
	slog.Info("snapshot written",
		slog.String("path", out),
		slog.Int("cities", cities),
		slog.Int("zones", zones),
		slog.Int("areas", areas),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}
