// Package backend opens the persistence backend selected by configuration.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"example.com/fittrack/internal/cache"
	"example.com/fittrack/internal/config"
	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/metrics"
	"example.com/fittrack/internal/persistence/memory"
	"example.com/fittrack/internal/persistence/postgres"
	"example.com/fittrack/internal/persistence/remote"
	"example.com/fittrack/internal/persistence/sqlite"
)

// Backend bundles the repositories of one storage choice.
type Backend struct {
	Name       string
	Activities domain.ActivityRepository
	Profiles   domain.ProfileRepository
	// Users is nil for the remote backend, where accounts live on the server.
	Users domain.UserRepository
	// Remote is set for the remote backend.
	Remote *remote.Client
	// Pool is set for the postgres backend.
	Pool        *pgxpool.Pool
	Invalidator cache.Invalidator

	closers []func() error
}

// Open builds the backend named by cfg.Backend. When cfg.RedisAddr is set the activity repository
// is wrapped in a Redis read-through cache.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Backend{Name: cfg.Backend, Invalidator: cache.NoopInvalidator{}}

	switch cfg.Backend {
	case config.BackendMemory:
		repo := memory.NewRepository()
		b.Activities, b.Profiles, b.Users = repo, repo, repo
	case config.BackendSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		repo := sqlite.NewRepository(db)
		b.Activities, b.Profiles, b.Users = repo, repo, repo
		b.closers = append(b.closers, db.Close)
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, &domain.TransportError{Op: "ping postgres", Err: err}
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		repo := postgres.NewRepository(pool)
		b.Activities, b.Profiles, b.Users = repo, repo, repo
		b.Pool = pool
		b.closers = append(b.closers, func() error { pool.Close(); return nil })
	case config.BackendRemote:
		client := remote.NewClient(cfg.RemoteURL, cfg.RemoteTimeout)
		b.Activities, b.Profiles, b.Remote = client, client, client
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	if cfg.RedisAddr != "" && cfg.Backend != config.BackendRemote {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, continuing without cache", "addr", cfg.RedisAddr, "error", err)
			_ = rdb.Close()
		} else {
			cached := cache.NewActivityCache(b.Activities, rdb, cfg.CacheTTL, logger)
			b.Activities = cached
			b.Invalidator = cached
			b.closers = append(b.closers, rdb.Close)
		}
	}

	logger.Info("persistence backend ready", "backend", cfg.Backend)
	return b, nil
}

// ResolveUser returns the user the local services act for. The remote backend logs in with the
// configured credentials and uses the server's user id.
func (b *Backend) ResolveUser(ctx context.Context, cfg config.Config) (string, error) {
	if b.Remote == nil {
		return cfg.UserID, nil
	}
	if cfg.RemoteUsername == "" {
		return "", &domain.AuthenticationError{Reason: "FITTRACK_REMOTE_USERNAME is required for the remote backend"}
	}
	session, err := b.Remote.Login(ctx, cfg.RemoteUsername, cfg.RemotePassword)
	if err != nil {
		return "", err
	}
	return session.User.ID, nil
}

// ActivityService builds the activity service over this backend using cfg's constants and timezone.
func (b *Backend) ActivityService(cfg config.Config, logger *slog.Logger) *domain.ActivityService {
	return domain.NewActivityService(b.Activities, metrics.NewEngine(cfg.CaloriesPerStep, cfg.MetersPerStep),
		domain.WithLocation(cfg.Location()),
		domain.WithLogger(logger),
	)
}

// Close releases every resource opened by Open.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
