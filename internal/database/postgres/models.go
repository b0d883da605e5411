package postgres

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShareSlice is one row of the share_slices table: a pre-bucketed share
// count for one (miner, worker) pair at one granularity. The rollup pipeline
// writes these; the dashboard only reads them.
type ShareSlice struct {
	Miner       string
	Worker      string
	SliceTime   time.Time
	Value       int64
	Granularity int16
	Rejected    bool
}

// UserSettings is the per-miner settings row mutated by signed commands.
type UserSettings struct {
	Miner        string
	DonationRate decimal.Decimal
	Anonymous    bool
	UpdatedAt    time.Time
}

// PayoutAddress maps a miner to their payout address for one currency.
type PayoutAddress struct {
	Miner    string
	Currency string
	Address  string
}

// LedgerEntry is one credit or debit on a miner's payout ledger.
type LedgerEntry struct {
	ID        int64
	Miner     string
	Currency  string
	Amount    int64
	CreatedAt time.Time
}

// Block is a block the pool found, recorded when the round rolls over.
type Block struct {
	ID         int64
	Height     int64
	Hash       string
	Algo       string
	MergedType string
	FoundAt    time.Time
}
