package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"bookclub/internal/cache"
	"bookclub/internal/config"
	"bookclub/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Env:                      "test",
		DBDriver:                 "sqlite",
		SQLitePath:               filepath.Join(t.TempDir(), "bookclub.db"),
		DBConnMaxLifetimeMinutes: 5,
		RedisURL:                 "127.0.0.1:1",
	}
}

func TestInitRuntime_SeedsEmptyDatabase(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := sqliteConfig(t)
	cfg.RedisURL = mr.Addr()
	t.Cleanup(func() { cache.SetClient(nil) })

	db, rdb, err := InitRuntime(context.Background(), cfg, Options{SeedDemo: true})
	require.NoError(t, err)
	require.NotNil(t, rdb)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Equal(t, int64(12), users)

	// A second start leaves existing data alone.
	_, _, err = InitRuntime(context.Background(), cfg, Options{SeedDemo: true})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Equal(t, int64(12), users)
}

func TestInitRuntime_WithoutRedis(t *testing.T) {
	t.Cleanup(func() { cache.SetClient(nil) })

	db, rdb, err := InitRuntime(context.Background(), sqliteConfig(t), Options{})
	require.NoError(t, err)
	assert.NotNil(t, db)
	assert.Nil(t, rdb)
}

func TestStartJobs(t *testing.T) {
	cfg := sqliteConfig(t)
	t.Cleanup(func() { cache.SetClient(nil) })
	db, _, err := InitRuntime(context.Background(), cfg, Options{})
	require.NoError(t, err)

	s, err := StartJobs(cfg, db, nil)
	require.NoError(t, err)
	assert.Nil(t, s, "empty schedule disables the job")

	cfg.CounterReconcileSpec = "@every 1h"
	s, err = StartJobs(cfg, db, nil)
	require.NoError(t, err)
	require.NotNil(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))

	cfg.CounterReconcileSpec = "every so often"
	_, err = StartJobs(cfg, db, nil)
	assert.Error(t, err)
}

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(&config.Config{Env: "test"}, "dev")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
