// Package config loads server configuration from the environment and wires
// the service's collaborators from it.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/printforge/labelcore/pkg/labelcore"
	badgercache "github.com/printforge/labelcore/pkg/labelcore/cache/badger"
	memorycache "github.com/printforge/labelcore/pkg/labelcore/cache/memory"
	memoryrepo "github.com/printforge/labelcore/pkg/labelcore/repo/memory"
	postgresrepo "github.com/printforge/labelcore/pkg/labelcore/repo/postgres"
	fsstorage "github.com/printforge/labelcore/pkg/labelcore/storage/fs"
	memorystorage "github.com/printforge/labelcore/pkg/labelcore/storage/memory"
	s3storage "github.com/printforge/labelcore/pkg/labelcore/storage/s3"
)

// ServerConfig represents server configuration for the labelcore service.
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"` // development, production, testing
	JWTSecret   string `env:"JWT_SECRET" env-default:""`

	// Database configuration
	DatabaseType  string `env:"DATABASE_TYPE" env-default:"memory"` // "memory", "postgres"
	DatabaseURL   string `env:"DATABASE_URL" env-default:""`
	RunMigrations bool   `env:"RUN_MIGRATIONS" env-default:"true"`

	// Storage configuration
	StorageBackend string `env:"STORAGE_BACKEND" env-default:"memory"` // "memory", "fs", "s3", "none"

	FSBaseDir   string `env:"FS_BASE_DIR" env-default:"./data/storage"`
	FSURLPrefix string `env:"FS_URL_PREFIX" env-default:"http://localhost:8080/blobs"`
	FSURLSecret string `env:"FS_URL_SECRET" env-default:""`

	S3Region                 string `env:"S3_REGION" env-default:"us-east-1"`
	S3Bucket                 string `env:"S3_BUCKET" env-default:""`
	S3AccessKeyID            string `env:"S3_ACCESS_KEY_ID" env-default:""`
	S3SecretAccessKey        string `env:"S3_SECRET_ACCESS_KEY" env-default:""`
	S3Endpoint               string `env:"S3_ENDPOINT" env-default:""`
	S3UsePathStyle           bool   `env:"S3_USE_PATH_STYLE" env-default:"false"`
	S3CreateBucketIfNotExist bool   `env:"S3_CREATE_BUCKET_IF_NOT_EXIST" env-default:"false"`

	// Cache configuration
	CacheBackend string `env:"CACHE_BACKEND" env-default:"memory"` // "memory", "badger", "none"
	BadgerDir    string `env:"BADGER_DIR" env-default:""`

	// Server options
	ThumbnailURLTTL    time.Duration `env:"THUMBNAIL_URL_TTL" env-default:"1h"`
	EnableEventLogging bool          `env:"ENABLE_EVENT_LOGGING" env-default:"true"`
}

// Load reads configuration from the environment and validates it.
func Load() (*ServerConfig, error) {
	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when using postgres")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}

	switch c.StorageBackend {
	case "memory", "fs", "none":
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required when using s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s", c.StorageBackend)
	}

	switch c.CacheBackend {
	case "memory", "badger", "none":
	default:
		return fmt.Errorf("unsupported cache backend: %s", c.CacheBackend)
	}

	if c.Environment == "production" && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required in production")
	}
	return nil
}

// BuildService wires a Service from the configuration. The returned cleanup
// function releases pooled connections and the cache; ctx bounds background
// work such as the in-process cache sweeper.
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger) (labelcore.Service, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	repo, repoCleanup, err := c.buildRepository(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("build repository: %w", err)
	}
	if repoCleanup != nil {
		cleanups = append(cleanups, repoCleanup)
	}

	store, err := c.buildStorageBackend(ctx)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("build storage backend: %w", err)
	}

	cache, cacheCleanup, err := c.buildCacheBackend(ctx, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("build cache backend: %w", err)
	}
	if cacheCleanup != nil {
		cleanups = append(cleanups, cacheCleanup)
	}

	options := []labelcore.Option{
		labelcore.WithRepository(repo),
		labelcore.WithBlobStore(store),
		labelcore.WithCache(cache),
		labelcore.WithLogger(logger),
		labelcore.WithSignTTL(c.ThumbnailURLTTL),
	}
	if c.EnableEventLogging {
		options = append(options, labelcore.WithEventSink(labelcore.NewLoggingEventSink(logger)))
	}

	svc, err := labelcore.New(options...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}

func (c *ServerConfig) buildRepository(ctx context.Context) (labelcore.Repository, func(), error) {
	switch c.DatabaseType {
	case "memory":
		return memoryrepo.New(), nil, nil
	case "postgres":
		if c.RunMigrations {
			if err := postgresrepo.Migrate(ctx, c.DatabaseURL); err != nil {
				return nil, nil, err
			}
		}
		pool, err := pgxpool.New(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("create pgx pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("database ping failed: %w", err)
		}
		return postgresrepo.NewWithPool(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func (c *ServerConfig) buildStorageBackend(ctx context.Context) (labelcore.BlobStore, error) {
	switch c.StorageBackend {
	case "none":
		return labelcore.NewNoopBlobStore(), nil
	case "memory":
		return memorystorage.New(), nil
	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir:   c.FSBaseDir,
			URLPrefix: c.FSURLPrefix,
			URLSecret: c.FSURLSecret,
		})
	case "s3":
		return s3storage.New(ctx, s3storage.Config{
			Region:                 c.S3Region,
			Bucket:                 c.S3Bucket,
			AccessKeyID:            c.S3AccessKeyID,
			SecretAccessKey:        c.S3SecretAccessKey,
			Endpoint:               c.S3Endpoint,
			UsePathStyle:           c.S3UsePathStyle,
			CreateBucketIfNotExist: c.S3CreateBucketIfNotExist,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", c.StorageBackend)
	}
}

func (c *ServerConfig) buildCacheBackend(ctx context.Context, logger *slog.Logger) (labelcore.Cache, func(), error) {
	switch c.CacheBackend {
	case "none":
		return labelcore.NewNoopCache(), nil, nil
	case "memory":
		cache := memorycache.New()
		go cache.Run(ctx, time.Minute)
		return cache, nil, nil
	case "badger":
		cache, err := badgercache.New(badgercache.Config{
			Dir:      c.BadgerDir,
			InMemory: c.BadgerDir == "",
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return cache, func() { cache.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache backend: %s", c.CacheBackend)
	}
}
