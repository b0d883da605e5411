// Package database provides unified database management for the dashd pool
// dashboard. It coordinates PostgreSQL (share slices, settings, ledger,
// blocks), Redis (round counters, liveness, cache), and InfluxDB (pool
// metric snapshots).
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/lucidpool/dashd/internal/database/influx"
	"github.com/lucidpool/dashd/internal/database/postgres"
	"github.com/lucidpool/dashd/internal/database/redis"
	"github.com/lucidpool/dashd/pkg/circuit"
	"github.com/lucidpool/dashd/pkg/errors"
	"github.com/lucidpool/dashd/pkg/retry"
)

// Manager coordinates all database operations across PostgreSQL, Redis, and InfluxDB
type Manager struct {
	Postgres *postgres.Client
	Redis    *redis.Client
	Influx   *influx.Client

	// Repositories
	Shares   *postgres.ShareRepository
	Settings *postgres.SettingsRepository
	Ledger   *postgres.LedgerRepository
	Blocks   *postgres.BlockRepository

	// Error handling
	circuitBreaker *circuit.Breaker
	retryConfig    *retry.Config
}

// Config holds configuration for all database systems
type Config struct {
	Postgres *postgres.Config
	Redis    *redis.Config
	Influx   *influx.Config
}

// NewManager creates a new database manager with all connections
func NewManager(cfg *Config) (*Manager, error) {
	pgClient, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDatabase, "postgres_connection",
			"failed to connect to PostgreSQL database")
	}

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		if closeErr := pgClient.Close(); closeErr != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeDatabase, "redis_connection",
				"failed to connect to Redis database").
				WithContext("postgres_cleanup_error", closeErr.Error())
		}
		return nil, errors.Wrap(err, errors.ErrorTypeDatabase, "redis_connection",
			"failed to connect to Redis database")
	}

	influxClient, err := influx.NewClient(cfg.Influx)
	if err != nil {
		var closeErrs []error
		if closeErr := pgClient.Close(); closeErr != nil {
			closeErrs = append(closeErrs, closeErr)
		}
		if closeErr := redisClient.Close(); closeErr != nil {
			closeErrs = append(closeErrs, closeErr)
		}

		origErr := errors.Wrap(err, errors.ErrorTypeDatabase, "influx_connection",
			"failed to connect to InfluxDB database")
		if len(closeErrs) > 0 {
			return nil, origErr.WithContext("cleanup_errors", fmt.Sprintf("%v", closeErrs))
		}
		return nil, origErr
	}

	cbConfig := &circuit.Config{
		MaxFailures:     3,
		SuccessRequired: 2,
		Timeout:         30 * time.Second,
		ResetTimeout:    60 * time.Second,
	}

	return &Manager{
		Postgres:       pgClient,
		Redis:          redisClient,
		Influx:         influxClient,
		Shares:         postgres.NewShareRepository(pgClient.DB()),
		Settings:       postgres.NewSettingsRepository(pgClient.DB()),
		Ledger:         postgres.NewLedgerRepository(pgClient.DB()),
		Blocks:         postgres.NewBlockRepository(pgClient.DB()),
		circuitBreaker: circuit.New(cbConfig),
		retryConfig:    retry.DatabaseConfig(),
	}, nil
}

// Close closes all database connections
func (m *Manager) Close() error {
	var errs []error

	if err := m.Postgres.Close(); err != nil {
		errs = append(errs, fmt.Errorf("PostgreSQL close error: %w", err))
	}

	if err := m.Redis.Close(); err != nil {
		errs = append(errs, fmt.Errorf("redis close error: %w", err))
	}

	m.Influx.Close()

	if len(errs) > 0 {
		return fmt.Errorf("database close errors: %v", errs)
	}

	return nil
}

// Health checks the health of all database connections
func (m *Manager) Health(ctx context.Context) error {
	if err := m.Postgres.Health(ctx); err != nil {
		return fmt.Errorf("PostgreSQL health check failed: %w", err)
	}

	if err := m.Redis.Health(ctx); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	if err := m.Influx.Health(ctx); err != nil {
		return fmt.Errorf("InfluxDB health check failed: %w", err)
	}

	return nil
}

// RecordBlockFind persists a found block and rolls the live round counter
// over to a fresh one. The block insert is the critical step and runs under
// the circuit breaker with retries; the counter rename is best effort since
// the payout job can recover an unrolled round from the archived hash list.
func (m *Manager) RecordBlockFind(ctx context.Context, block *postgres.Block) error {
	err := m.circuitBreaker.Execute(ctx, func() error {
		return retry.Do(ctx, m.retryConfig, func() error {
			if err := m.Blocks.RecordBlock(ctx, block); err != nil {
				return errors.Wrap(err, errors.ErrorTypeDatabase, "record_block_find",
					"failed to store found block").
					WithContext("height", block.Height).
					WithContext("hash", block.Hash)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	suffix := block.Algo
	if block.MergedType != "" {
		suffix = block.Algo + "_" + block.MergedType
	}
	if rollErr := m.Redis.RollRound(ctx, suffix, block.Hash); rollErr != nil {
		return errors.Wrap(rollErr, errors.ErrorTypeDatabase, "record_block_find",
			"block stored but round counter rollover failed").
			WithContext("hash", block.Hash)
	}

	return nil
}
