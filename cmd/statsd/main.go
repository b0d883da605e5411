// Package main implements statsd, the dashd statistics daemon. It keeps the
// worker liveness keys fresh from the Kafka feed, rolls the round counters
// over when the coin node announces a block, and writes pool-wide metric
// snapshots to InfluxDB on a fixed interval.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lucidpool/dashd/internal/config"
	"github.com/lucidpool/dashd/internal/database"
	"github.com/lucidpool/dashd/internal/database/influx"
	"github.com/lucidpool/dashd/internal/database/postgres"
	"github.com/lucidpool/dashd/internal/database/redis"
	"github.com/lucidpool/dashd/internal/messaging"
	"github.com/lucidpool/dashd/internal/node"
	"github.com/lucidpool/dashd/internal/stats"
	"github.com/lucidpool/dashd/pkg/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := log.New(cfg.ServiceName, cfg.Version, cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting statsd",
		"version", cfg.Version,
		"algo", cfg.PoolAlgo,
		"stats_interval", cfg.StatsInterval.String(),
	)

	// Connect databases
	db, err := database.NewManager(&database.Config{
		Postgres: &postgres.Config{URL: cfg.PostgresURL},
		Redis: &redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		Influx: &influx.Config{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		},
	})
	if err != nil {
		logger.WithError(err).Error("database setup failed")
		os.Exit(1)
	}

	// Coin node connections
	rpcClient, err := node.NewRPCClient(cfg.NodeRPCHost, cfg.NodeRPCPort,
		cfg.NodeRPCUser, cfg.NodeRPCPassword)
	if err != nil {
		logger.WithError(err).Error("RPC client setup failed")
		os.Exit(1)
	}

	notifier, err := node.NewBlockNotifier(cfg.NodeZMQAddr, logger)
	if err != nil {
		logger.WithError(err).Error("ZMQ setup failed")
		os.Exit(1)
	}
	if err := notifier.Connect(); err != nil {
		logger.WithError(err).Error("ZMQ connect failed")
		os.Exit(1)
	}

	// Kafka client for the liveness feed
	kafkaClient := messaging.NewKafkaClient(cfg.KafkaBrokers, logger)

	daemon := NewStatsDaemon(cfg, logger, db, kafkaClient, rpcClient, notifier)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := daemon.Start(ctx); err != nil && err != context.Canceled {
			logger.WithError(err).Error("stats daemon failed")
			cancel()
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	logger.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := daemon.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown failed")
		os.Exit(1)
	}

	logger.Info("statsd stopped")
}

// StatsDaemon runs the three statsd loops: liveness consumption, block
// notifications, and periodic metric snapshots.
type StatsDaemon struct {
	cfg      *config.Config
	logger   *log.Logger
	db       *database.Manager
	kafka    *messaging.KafkaClient
	rpc      *node.RPCClient
	notifier *node.BlockNotifier
	agg      *stats.Aggregator
	done     chan struct{}
}

// NewStatsDaemon wires the daemon together.
func NewStatsDaemon(cfg *config.Config, logger *log.Logger, db *database.Manager,
	kafka *messaging.KafkaClient, rpc *node.RPCClient, notifier *node.BlockNotifier) *StatsDaemon {
	agg := stats.NewAggregator(
		stats.Deps{
			Records:  db.Shares,
			Settings: db.Settings,
			Ledger:   db.Ledger,
			Blocks:   db.Blocks,
			Counters: db.Redis,
			Feed:     db.Redis,
			Cache:    db.Redis,
		},
		stats.Options{
			HashesPerShare: cfg.HashesPerShare,
			FeePercent:     cfg.FeePercent,
			HostEndpoints:  cfg.HostEndpoints,
		},
		logger,
	)

	return &StatsDaemon{
		cfg:      cfg,
		logger:   logger.WithComponent("statsd"),
		db:       db,
		kafka:    kafka,
		rpc:      rpc,
		notifier: notifier,
		agg:      agg,
		done:     make(chan struct{}),
	}
}

// Start runs the daemon loops until the context is cancelled.
func (d *StatsDaemon) Start(ctx context.Context) error {
	d.logger.Info("stats daemon starting")

	go d.consumeOnlineReports(ctx)
	go d.watchBlocks(ctx)
	go d.snapshotLoop(ctx)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return nil
	}
}

// Shutdown stops the loops and closes every connection.
func (d *StatsDaemon) Shutdown(_ context.Context) error {
	d.logger.Info("shutting down stats daemon")
	close(d.done)

	var lastErr error
	if err := d.notifier.Close(); err != nil {
		d.logger.WithError(err).Error("ZMQ close failed")
		lastErr = err
	}
	if err := d.kafka.Close(); err != nil {
		d.logger.WithError(err).Error("kafka close failed")
		lastErr = err
	}
	d.rpc.Close()
	if err := d.db.Close(); err != nil {
		d.logger.WithError(err).Error("database close failed")
		lastErr = err
	}
	return lastErr
}

// consumeOnlineReports moves liveness reports from Kafka into Redis where
// the aggregation path reads them. Each report replaces the previous one for
// its address and carries a TTL so silent workers age out.
func (d *StatsDaemon) consumeOnlineReports(ctx context.Context) {
	reader := d.kafka.GetConsumer(messaging.TopicWorkersOnline, d.cfg.KafkaGroupID)

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		default:
		}

		var event messaging.WorkerOnlineEvent
		key, err := d.kafka.ConsumeJSON(ctx, reader, &event)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.WithError(err).Error("failed to consume liveness report")
			continue
		}

		address := event.Address
		if address == "" {
			address = key
		}

		pairs := make([]stats.OnlinePair, 0, len(event.Workers))
		for _, w := range event.Workers {
			pairs = append(pairs, stats.OnlinePair{Worker: w.Worker, Host: w.Host})
		}

		if err := d.db.Redis.SetOnlineWorkers(ctx, address, pairs, d.cfg.OnlineTTL); err != nil {
			d.logger.WithError(err).WithUser(address).Error("failed to store liveness report")
		}
	}
}

// watchBlocks turns coin node block notifications into round rollovers.
func (d *StatsDaemon) watchBlocks(ctx context.Context) {
	err := d.notifier.Listen(ctx, func(blockHash string) error {
		return d.handleBlockFind(ctx, blockHash)
	})
	if err != nil && ctx.Err() == nil {
		d.logger.WithError(err).Error("block listener exited")
	}
}

// handleBlockFind records the block and rolls the live round counter. The
// height lookup is best effort; a zero height still archives the round.
func (d *StatsDaemon) handleBlockFind(ctx context.Context, blockHash string) error {
	height, err := d.rpc.GetBlockCount(ctx)
	if err != nil {
		d.logger.WithError(err).Warn("could not fetch block height for found block")
		height = 0
	}

	block := &postgres.Block{
		Height:  height,
		Hash:    blockHash,
		Algo:    d.cfg.PoolAlgo,
		FoundAt: time.Now().UTC(),
	}

	if err := d.db.RecordBlockFind(ctx, block); err != nil {
		return err
	}

	d.logger.LogRoundRollover(d.cfg.PoolAlgo, blockHash)
	return nil
}

// snapshotLoop writes a pool-wide metric point every stats interval.
func (d *StatsDaemon) snapshotLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case <-ticker.C:
			d.writeSnapshot(ctx)
		}
	}
}

func (d *StatsDaemon) writeSnapshot(ctx context.Context) {
	start := time.Now()

	hashrate, err := d.agg.PoolHashrate(ctx)
	if err != nil {
		d.logger.WithError(err).Error("pool hashrate computation failed")
		return
	}

	accepted, rejected, err := d.agg.PoolAccRej(ctx, 24*time.Hour)
	if err != nil {
		d.logger.WithError(err).Error("pool accept/reject computation failed")
		return
	}

	efficiency, err := d.agg.PoolEfficiency(ctx, 24*time.Hour)
	if err != nil {
		d.logger.WithError(err).Error("pool efficiency computation failed")
		return
	}

	roundShares, _, err := d.agg.RoundShares(ctx, d.cfg.PoolAlgo, "")
	if err != nil {
		d.logger.WithError(err).Warn("round share counter read failed")
		roundShares = 0
	}

	d.db.Influx.WritePoolSnapshot(&influx.PoolSnapshot{
		Algo:        d.cfg.PoolAlgo,
		HashrateMHs: hashrate,
		Efficiency:  efficiency,
		Accepted:    accepted,
		Rejected:    rejected,
		RoundShares: roundShares,
		Taken:       time.Now().UTC(),
	})

	d.logger.LogDuration("pool_snapshot", time.Since(start))
}
