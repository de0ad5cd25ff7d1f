// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

// Package config loads the engine's environment-variable configuration.
// It replaces the teacher's JSON-file config loader (pkg/configs in the
// original migration engine) because this system's external interface
// is purely env-driven (see spec.md §6).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/sylos-labs/catalog-migrator/pkg/migrationerr"
)

// Config aggregates every environment-driven knob the engine needs.
type Config struct {
	LegacyDatabaseURL  string
	TargetDatabaseURL  string
	CoordinationURL    string
	WorkerID           string
	TestMode           bool
	MaxRetries         int
	RetryDelay         time.Duration
	ChunkSize          int
	LockTTL            time.Duration
	LockRenewInterval  time.Duration
	WorkerCount        int
	SnapshotPath       string
	LogFormat          string
	LocalStorePath     string
	FallbackCategoryID string
}

const (
	defaultChunkSize         = 500
	defaultLockTTLSeconds    = 60
	defaultWorkerCount       = 8
	defaultMaxRetries        = 3
	defaultRetryDelaySeconds = 5
	// TestModeRecordCap bounds total records considered when TEST_MODE is set,
	// per spec.md §6 ("cap total records to a small constant for smoke tests").
	TestModeRecordCap = 200
)

// Load reads and validates configuration from the process environment.
// A .env file in the working directory is loaded first, if present,
// letting local/dev runs set these variables without exporting them
// into the shell; its absence is not an error, since deployed workers
// set the environment directly.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "config: .env present but unreadable: %v\n", err)
	}

	cfg := Config{
		LogFormat:      envOr("LOG_FORMAT", "console"),
		SnapshotPath:   envOr("SNAPSHOT_PATH", "data/products/all-products.json"),
		LocalStorePath: envOr("LOCAL_STORE_PATH", "data/worker.db"),
	}

	cfg.LegacyDatabaseURL = firstNonEmpty(os.Getenv("OLD_DATABASE_URL"), os.Getenv("LEGACY_DATABASE_URL"))
	if cfg.LegacyDatabaseURL == "" {
		return Config{}, migrationerr.Configuration("config.Load", "one of OLD_DATABASE_URL or LEGACY_DATABASE_URL is required")
	}

	cfg.TargetDatabaseURL = os.Getenv("PRODUCTS_DATABASE_URL")
	if cfg.TargetDatabaseURL == "" {
		return Config{}, migrationerr.Configuration("config.Load", "PRODUCTS_DATABASE_URL is required")
	}

	cfg.CoordinationURL = envOr("REDIS_URL", "")
	if cfg.CoordinationURL == "" {
		return Config{}, migrationerr.Configuration("config.Load", "REDIS_URL (coordination service) is required")
	}

	cfg.WorkerID = os.Getenv("WORKER_ID")
	if cfg.WorkerID == "" {
		cfg.WorkerID = "worker-" + uuid.NewString()
	}

	cfg.TestMode = envBool("TEST_MODE", false)

	maxRetries, err := envInt("MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		return Config{}, migrationerr.Configuration("config.Load", "MAX_RETRIES: %v", err)
	}
	cfg.MaxRetries = maxRetries

	retryDelaySec, err := envInt("RETRY_DELAY", defaultRetryDelaySeconds)
	if err != nil {
		return Config{}, migrationerr.Configuration("config.Load", "RETRY_DELAY: %v", err)
	}
	cfg.RetryDelay = time.Duration(retryDelaySec) * time.Second

	chunkSize, err := envInt("CHUNK_SIZE", defaultChunkSize)
	if err != nil {
		return Config{}, migrationerr.Configuration("config.Load", "CHUNK_SIZE: %v", err)
	}
	if chunkSize <= 0 {
		return Config{}, migrationerr.Configuration("config.Load", "CHUNK_SIZE must be positive, got %d", chunkSize)
	}
	cfg.ChunkSize = chunkSize

	lockTTLSec, err := envInt("LOCK_TTL_SECONDS", defaultLockTTLSeconds)
	if err != nil {
		return Config{}, migrationerr.Configuration("config.Load", "LOCK_TTL_SECONDS: %v", err)
	}
	cfg.LockTTL = time.Duration(lockTTLSec) * time.Second

	// Default lease renewal interval is 40% of the lock TTL, per spec.md §4.1.
	renewMS, err := envInt("LOCK_RENEW_INTERVAL_MS", int(cfg.LockTTL.Milliseconds()*4/10))
	if err != nil {
		return Config{}, migrationerr.Configuration("config.Load", "LOCK_RENEW_INTERVAL_MS: %v", err)
	}
	cfg.LockRenewInterval = time.Duration(renewMS) * time.Millisecond

	workerCount, err := envInt("WORKER_COUNT", defaultWorkerCount)
	if err != nil {
		return Config{}, migrationerr.Configuration("config.Load", "WORKER_COUNT: %v", err)
	}
	cfg.WorkerCount = workerCount

	cfg.FallbackCategoryID = os.Getenv("FALLBACK_BASE_CATEGORY_ID")
	if cfg.FallbackCategoryID == "" {
		return Config{}, migrationerr.Configuration("config.Load", "FALLBACK_BASE_CATEGORY_ID is required")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q: %w", v, err)
	}
	return n, nil
}
