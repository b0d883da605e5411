package stats

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Record is one raw share slice as persisted by the rollup pipeline. Records
// are read-only here; the aggregation engine never writes them.
type Record struct {
	User        string      `json:"user"`
	Worker      string      `json:"worker"`
	Time        time.Time   `json:"time"`
	Value       int64       `json:"value"`
	Granularity Granularity `json:"granularity"`
}

// Filter narrows a record query. Zero-valued fields are not applied, except
// Granularity and Rejected which always apply.
type Filter struct {
	User        string
	Worker      string
	Granularity Granularity
	Rejected    bool
	Since       time.Time
	Until       time.Time
}

// WorkerStat is the per-worker aggregate built fresh on every call.
// Efficiency is nil when the worker has no accepted or rejected shares at
// all; reporting 0% on no data would be misleading.
type WorkerStat struct {
	Name         string   `json:"name"`
	Accepted     int64    `json:"accepted"`
	Rejected     int64    `json:"rejected"`
	Last10Shares int64    `json:"last_10_shares"`
	Online       bool     `json:"online"`
	Server       string   `json:"server"`
	Hashrate     float64  `json:"last_10_hashrate"`
	Efficiency   *float64 `json:"efficiency"`
}

// LedgerItem is one recent payout-ledger entry for an account.
type LedgerItem struct {
	Currency  string    `json:"currency"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// UserStats is the full aggregate served for one account page.
type UserStats struct {
	Workers         []WorkerStat    `json:"workers"`
	LedgerItems     []LedgerItem    `json:"ledger_items"`
	DonationPercent decimal.Decimal `json:"donation_percent"`
	Last10Shares    int64           `json:"last_10_shares"`
	Last10Hashrate  float64         `json:"last_10_hashrate"`
	NextPayout      time.Time       `json:"next_payout"`
	NextExchange    time.Time       `json:"next_exchange"`
	FeePercent      float64         `json:"fee_percent"`
}

// OnlinePair is one (worker, reporting host) liveness signal.
type OnlinePair struct {
	Worker string `json:"worker"`
	Host   string `json:"host"`
}

// RecordStore reads persisted share and reject slices.
type RecordStore interface {
	Records(ctx context.Context, f Filter) ([]Record, error)
	EarliestRecordTime(ctx context.Context, g Granularity) (time.Time, bool, error)
}

// SettingsSource reads per-account settings. A missing settings row is not an
// error; implementations return a zero donation rate.
type SettingsSource interface {
	DonationRate(ctx context.Context, user string) (decimal.Decimal, error)
}

// LedgerSource reads recent payout-ledger entries for an account.
type LedgerSource interface {
	LedgerItems(ctx context.Context, user string, limit int) ([]LedgerItem, error)
}

// BlockSource reads block-find history for round timing.
type BlockSource interface {
	LastBlockTime(ctx context.Context, algo, mergedType string) (time.Time, bool, error)
}

// CounterStore reads the live round-share counters.
type CounterStore interface {
	RoundShares(ctx context.Context, suffix string) (int64, error)
}

// OnlineFeed reads the out-of-band worker liveness signals for an address.
type OnlineFeed interface {
	OnlineWorkers(ctx context.Context, address string) ([]OnlinePair, error)
}
