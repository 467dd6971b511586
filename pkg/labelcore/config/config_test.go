package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "memory", cfg.DatabaseType)
	assert.Equal(t, "memory", cfg.StorageBackend)
	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.Equal(t, time.Hour, cfg.ThumbnailURLTTL)
	assert.True(t, cfg.EnableEventLogging)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE_BACKEND", "fs")
	t.Setenv("FS_BASE_DIR", t.TempDir())
	t.Setenv("CACHE_BACKEND", "none")
	t.Setenv("THUMBNAIL_URL_TTL", "30m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "fs", cfg.StorageBackend)
	assert.Equal(t, "none", cfg.CacheBackend)
	assert.Equal(t, 30*time.Minute, cfg.ThumbnailURLTTL)
}

func TestValidate(t *testing.T) {
	base := func() ServerConfig {
		return ServerConfig{
			Port:            "8080",
			Environment:     "development",
			DatabaseType:    "memory",
			StorageBackend:  "memory",
			CacheBackend:    "memory",
			ThumbnailURLTTL: time.Hour,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr string
	}{
		{"valid defaults", func(c *ServerConfig) {}, ""},
		{"missing port", func(c *ServerConfig) { c.Port = "" }, "port is required"},
		{"postgres without url", func(c *ServerConfig) { c.DatabaseType = "postgres" }, "DATABASE_URL"},
		{"unknown database type", func(c *ServerConfig) { c.DatabaseType = "sqlite" }, "unsupported database type"},
		{"s3 without bucket", func(c *ServerConfig) { c.StorageBackend = "s3" }, "S3_BUCKET"},
		{"unknown storage backend", func(c *ServerConfig) { c.StorageBackend = "gcs" }, "unsupported storage backend"},
		{"unknown cache backend", func(c *ServerConfig) { c.CacheBackend = "redis" }, "unsupported cache backend"},
		{"production without jwt secret", func(c *ServerConfig) { c.Environment = "production" }, "JWT_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestBuildService_Memory(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("CACHE_BACKEND", "none")

	cfg, err := Load()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, cleanup, err := cfg.BuildService(ctx, nil)
	require.NoError(t, err)
	defer cleanup()
	assert.NotNil(t, svc)
}
