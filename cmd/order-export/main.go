package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/chilirig-checkout/internal/domain/order"
	"github.com/xenking/chilirig-checkout/internal/storage/postgres"
	"github.com/xenking/chilirig-checkout/internal/wire"
)

func main() {
	var (
		databaseURL string
		out         string
		limit       int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&out, "out", "-", "output file, - for stdout")
	flag.IntVar(&limit, "limit", 1000, "number of newest orders to export")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, out, limit); err != nil {
		slog.Error("order export failed", slog.String("error", err.Error()))
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL, out string, limit int) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	records, err := postgres.NewAuditRepository(pool).List(ctx, limit)
	if err != nil {
		return errors.Wrap(err, "list orders")
	}

	var w io.Writer = os.Stdout
	if out != "-" {
		f, err := os.Create(out)
		if err != nil {
			return errors.Wrap(err, "create output")
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	if err := write(w, records); err != nil {
		return errors.Wrap(err, "write orders")
	}
	slog.Info("orders exported", slog.Int("count", len(records)), slog.String("out", out))
	return nil
}

// write emits one JSON record per line, newest first.
func write(w io.Writer, records []order.Record) error {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	for _, r := range records {
		e.Reset()
		wire.EncodeRecord(e, r)
		if _, err := w.Write(append(e.Bytes(), '\n')); err != nil {
			return err
		}
	}
	return nil
}
