// Command catalog-ingest bulk-loads supplier catalog feeds: gzip-compressed
// NDJSON files, one product per line. Feeds from different suppliers overlap
// heavily, so each file is first streamed through a shared bloom filter to
// drop ids already ingested before any database work happens.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/lazmart/storefront/internal/domain/product"
	"github.com/lazmart/storefront/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

type feedLine struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	SpecialPrice decimal.Decimal `json:"special_price"`
	Category     string          `json:"category"`
	Image        string          `json:"image"`
	Stock        int             `json:"stock"`
}

// dedup wraps the bloom filter for concurrent use. A false positive drops a
// genuinely new product, which at 0.1% is an acceptable trade for not keeping
// every seen id in memory.
type dedup struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
}

func (d *dedup) firstSeen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.filter.TestOrAddString(id)
}

func main() {
	var (
		dataDir     string
		databaseURL string
		workers     int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.ndjson.gz feed files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&workers, "workers", 4, "number of feed files processed concurrently")
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

	if err := run(ctx, dataDir, databaseURL, workers); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, workers int) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.ndjson.gz"))
	if err != nil {
		return errors.Wrap(err, "glob feed files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.ndjson.gz files in %s", dataDir)
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := repository.NewProductRepository(pool)
	seen := &dedup{filter: bloom.NewWithEstimates(bloomCapacity, bloomFPR)}

	slog.Info("ingesting feeds", slog.Int("files", len(files)), slog.Int("workers", workers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, f := range files {
		g.Go(func() error {
			return ingestFile(ctx, f, repo, seen)
		})
	}
	return g.Wait()
}

func ingestFile(ctx context.Context, path string, repo product.Repository, seen *dedup) error {
	name := filepath.Base(path)
	slog.Info("ingesting feed", slog.String("file", name))

	var total, inserted, skipped uint64
	err := streamGzFile(ctx, path, func(line []byte) error {
		total++
		if total%progressEvery == 0 {
			slog.Info("ingest progress",
				slog.String("file", name),
				slog.Uint64("lines", total),
				slog.Uint64("inserted", inserted),
			)
		}

		var p feedLine
		if err := json.Unmarshal(line, &p); err != nil {
			slog.Warn("skipping malformed line",
				slog.String("file", name), slog.Uint64("line", total))
			return nil
		}
		if p.ID == "" || p.Name == "" || !p.Price.IsPositive() {
			skipped++
			return nil
		}
		if !seen.firstSeen(p.ID) {
			skipped++
			return nil
		}

		if err := repo.Upsert(ctx, &product.Product{
			ID:           p.ID,
			Name:         p.Name,
			Description:  p.Description,
			Price:        p.Price,
			SpecialPrice: p.SpecialPrice,
			Category:     p.Category,
			Image:        p.Image,
			Stock:        p.Stock,
		}); err != nil {
			return err
		}
		inserted++
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "ingest %s", name)
	}

	slog.Info("feed complete",
		slog.String("file", name),
		slog.Uint64("lines", total),
		slog.Uint64("inserted", inserted),
		slog.Uint64("skipped", skipped),
	)
	return nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(scanner.Bytes()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
