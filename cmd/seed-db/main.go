package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/coffee-shop/internal/domain/drink"
	"github.com/xenking/coffee-shop/internal/storage/postgres"
)

func main() {
	var (
		databaseURL    string
		connectTimeout time.Duration
		concurrency    int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.DurationVar(&connectTimeout, "connect-timeout", 30*time.Second, "how long to retry the initial connection")
	flag.IntVar(&concurrency, "concurrency", 4, "number of concurrent inserts")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		files = []string{"db/seed/drinks.json"}
	}

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, connectTimeout, concurrency, files); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL string, connectTimeout time.Duration, concurrency int, files []string) error {
	var drinks []drink.CreateRequest
	for _, path := range files {
		batch, err := readSeedFile(path)
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		lg.Info("Read seed file", zap.String("path", path), zap.Int("drinks", len(batch)))
		drinks = append(drinks, batch...)
	}

	pool, err := postgres.NewPool(ctx, lg, databaseURL, connectTimeout)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	created, skipped, err := seed(ctx, lg, drink.NewService(postgres.NewDrinkRepository(pool)), drinks, concurrency)
	if err != nil {
		return errors.Wrap(err, "seed drinks")
	}
	lg.Info("Drinks seeded", zap.Int64("created", created), zap.Int64("skipped", skipped))
	return nil
}

// seed creates drinks concurrently. Drinks whose title is already on the menu
// are skipped, so seeding twice is harmless.
func seed(ctx context.Context, lg *zap.Logger, svc *drink.Service, drinks []drink.CreateRequest, concurrency int) (created, skipped int64, err error) {
	var nCreated, nSkipped atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, concurrency))
	for _, req := range drinks {
		g.Go(func() error {
			d, err := svc.Create(ctx, req)
			switch {
			case errors.Is(err, drink.ErrTitleTaken):
				nSkipped.Add(1)
				lg.Debug("Drink already exists", zap.String("title", req.Title))
				return nil
			case err != nil:
				return errors.Wrapf(err, "create %q", req.Title)
			}
			nCreated.Add(1)
			lg.Info("Created drink", zap.Int64("id", d.ID), zap.String("title", d.Title))
			return nil
		})
	}
	err = g.Wait()
	return nCreated.Load(), nSkipped.Load(), err
}
