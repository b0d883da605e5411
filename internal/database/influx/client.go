// Package influx provides the InfluxDB client for the dashd pool dashboard.
// The stats loop writes a pool-wide snapshot each tick so operators can
// graph hashrate, efficiency, and round progress over time.
package influx

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Client wraps InfluxDB operations for time-series pool metrics
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	bucket   string
	org      string
}

// Config holds InfluxDB connection configuration
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// PoolSnapshot is one stats-loop observation of the whole pool.
type PoolSnapshot struct {
	Algo        string
	HashrateMHs float64
	Efficiency  float64
	Accepted    int64
	Rejected    int64
	RoundShares int64
	Taken       time.Time
}

// NewClient creates a new InfluxDB client
func NewClient(cfg *Config) (*Client, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check InfluxDB health: %w", err)
	}

	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return nil, fmt.Errorf("InfluxDB health check failed: %s", msg)
	}

	return &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		bucket:   cfg.Bucket,
		org:      cfg.Org,
	}, nil
}

// Close flushes pending points and closes the connection
func (c *Client) Close() {
	c.writeAPI.Flush()
	c.client.Close()
}

// Health checks InfluxDB connectivity
func (c *Client) Health(ctx context.Context) error {
	health, err := c.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("failed to check health: %w", err)
	}

	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return fmt.Errorf("health check failed: %s", msg)
	}

	return nil
}

// WritePoolSnapshot writes one stats-loop observation. Writes are buffered
// and flushed asynchronously by the client.
func (c *Client) WritePoolSnapshot(snap *PoolSnapshot) {
	tags := map[string]string{
		"algo": snap.Algo,
	}

	fields := map[string]interface{}{
		"hashrate_mhs": snap.HashrateMHs,
		"efficiency":   snap.Efficiency,
		"accepted":     snap.Accepted,
		"rejected":     snap.Rejected,
		"round_shares": snap.RoundShares,
	}

	point := write.NewPoint("pool_stats", tags, fields, snap.Taken)
	c.writeAPI.WritePoint(point)
}

// Flush forces a write of all pending points
func (c *Client) Flush() {
	c.writeAPI.Flush()
}
