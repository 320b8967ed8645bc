package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quizzer/internal/app"
	"quizzer/internal/auth"
	"quizzer/internal/config"
	"quizzer/internal/domain"
	"quizzer/internal/infra/memory"
	mongostore "quizzer/internal/infra/mongo"
	"quizzer/internal/infra/postgres"
	redisstore "quizzer/internal/infra/redis"
)

type feedLoader interface {
	LoadFeed(ctx context.Context, courseID string) ([]domain.QuestionView, error)
}

// backend is everything the commands need from the outside world.
type backend struct {
	store    app.Store
	feeds    app.FeedSource
	sessions auth.SessionStore
	closers  []func() error
}

// openBackend connects the configured store, the feed cache and the session
// store. Postgres schemas are migrated on open.
func openBackend(ctx context.Context, cfg config.Config, log *slog.Logger) (*backend, error) {
	b := &backend{}
	var loader feedLoader

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db := openPostgres(cfg.Postgres.URL)
		b.closers = append(b.closers, db.Close)
		if err := applyMigrations(ctx, db, log); err != nil {
			b.Close()
			return nil, err
		}
		b.store = postgres.NewStore(db)

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect pgx pool: %w", err)
		}
		b.closers = append(b.closers, func() error { pool.Close(); return nil })
		loader = postgres.NewFeedLoader(pool)

	case config.DriverMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		b.closers = append(b.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Disconnect(ctx)
		})
		store := mongostore.NewStore(client.Database(cfg.Mongo.Database))
		if err := store.EnsureIndexes(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		b.store = store
		loader = app.NewStoreFeedLoader(store)

	default:
		store := memory.NewStore()
		b.store = store
		loader = app.NewStoreFeedLoader(store)
	}

	feedTTL := config.TTLDuration(cfg.Delivery.FeedTTL, 10*time.Minute)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		b.feeds = redisstore.NewFeedCache(client, loader, feedTTL)
		b.sessions = redisstore.NewSessionStore(client)
	} else {
		b.feeds = memory.NewFeedCache(loader, feedTTL)
		b.sessions = memory.NewSessionStore()
	}

	log.Info("backend ready", "store", cfg.Store.Driver, "redis", cfg.Redis.Addr != "")
	return b, nil
}

func openPostgres(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Close releases connections in reverse order of opening.
func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
