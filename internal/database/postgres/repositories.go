package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lucidpool/dashd/internal/command"
	"github.com/lucidpool/dashd/internal/stats"
)

// ShareRepository reads share slices for the aggregation engine.
type ShareRepository struct {
	db *sql.DB
}

// NewShareRepository creates a new share slice repository
func NewShareRepository(db *sql.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

// Records retrieves share slices matching the filter. Zero-valued filter
// fields are not applied, matching the stats.RecordStore contract.
func (r *ShareRepository) Records(ctx context.Context, f stats.Filter) ([]stats.Record, error) {
	query := `
		SELECT miner, worker, slice_time, value, granularity
		FROM share_slices
		WHERE granularity = $1 AND rejected = $2`
	args := []any{int16(f.Granularity), f.Rejected}

	if f.User != "" {
		args = append(args, f.User)
		query += fmt.Sprintf(" AND miner = $%d", len(args))
	}
	if f.Worker != "" {
		args = append(args, f.Worker)
		query += fmt.Sprintf(" AND worker = $%d", len(args))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		query += fmt.Sprintf(" AND slice_time >= $%d", len(args))
	}
	if !f.Until.IsZero() {
		args = append(args, f.Until)
		query += fmt.Sprintf(" AND slice_time < $%d", len(args))
	}

	query += " ORDER BY slice_time"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query share slices: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var records []stats.Record
	for rows.Next() {
		var rec stats.Record
		var granularity int16
		if err := rows.Scan(&rec.User, &rec.Worker, &rec.Time, &rec.Value, &granularity); err != nil {
			return nil, fmt.Errorf("failed to scan share slice: %w", err)
		}
		rec.Granularity = stats.Granularity(granularity)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating share slices: %w", err)
	}

	return records, nil
}

// EarliestRecordTime returns the oldest slice time at a granularity, used as
// a round-start estimate when no block has been found yet.
func (r *ShareRepository) EarliestRecordTime(ctx context.Context, g stats.Granularity) (time.Time, bool, error) {
	query := `SELECT MIN(slice_time) FROM share_slices WHERE granularity = $1 AND rejected = false`

	var earliest sql.NullTime
	if err := r.db.QueryRowContext(ctx, query, int16(g)).Scan(&earliest); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query earliest slice: %w", err)
	}
	if !earliest.Valid {
		return time.Time{}, false, nil
	}
	return earliest.Time, true, nil
}

// SettingsRepository reads and writes per-miner settings. It serves both the
// aggregation path (donation lookups) and the signed-command commit path.
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// DonationRate reads a miner's configured donation fraction. A miner with no
// settings row donates nothing.
func (r *SettingsRepository) DonationRate(ctx context.Context, miner string) (decimal.Decimal, error) {
	query := `SELECT donation_rate FROM user_settings WHERE miner = $1`

	var rate decimal.Decimal
	err := r.db.QueryRowContext(ctx, query, miner).Scan(&rate)
	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query donation rate: %w", err)
	}
	return rate, nil
}

// PayoutAddresses reads a miner's configured payout addresses keyed by
// currency.
func (r *SettingsRepository) PayoutAddresses(ctx context.Context, miner string) (map[string]string, error) {
	query := `SELECT currency, address FROM payout_addresses WHERE miner = $1`

	rows, err := r.db.QueryContext(ctx, query, miner)
	if err != nil {
		return nil, fmt.Errorf("failed to query payout addresses: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	addrs := make(map[string]string)
	for rows.Next() {
		var currency, address string
		if err := rows.Scan(&currency, &address); err != nil {
			return nil, fmt.Errorf("failed to scan payout address: %w", err)
		}
		addrs[currency] = address
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payout addresses: %w", err)
	}

	return addrs, nil
}

// UpdateSettings commits a validated settings change in one transaction:
// the settings row, every address addition, and every address deletion land
// together or not at all.
func (r *SettingsRepository) UpdateSettings(ctx context.Context, miner string, update command.Update) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin settings transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	settingsQuery := `
		INSERT INTO user_settings (miner, donation_rate, anonymous, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (miner) DO UPDATE
		SET donation_rate = EXCLUDED.donation_rate,
		    anonymous = EXCLUDED.anonymous,
		    updated_at = EXCLUDED.updated_at`

	if _, err := tx.ExecContext(ctx, settingsQuery,
		miner, update.Donation, update.Anonymous, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert settings: %w", err)
	}

	addrQuery := `
		INSERT INTO payout_addresses (miner, currency, address)
		VALUES ($1, $2, $3)
		ON CONFLICT (miner, currency) DO UPDATE
		SET address = EXCLUDED.address`

	for currency, address := range update.SetAddrs {
		if _, err := tx.ExecContext(ctx, addrQuery, miner, currency, address); err != nil {
			return fmt.Errorf("failed to upsert payout address: %w", err)
		}
	}

	delQuery := `DELETE FROM payout_addresses WHERE miner = $1 AND currency = $2`
	for _, currency := range update.DelAddrs {
		if _, err := tx.ExecContext(ctx, delQuery, miner, currency); err != nil {
			return fmt.Errorf("failed to delete payout address: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settings transaction: %w", err)
	}

	return nil
}

// LedgerRepository reads the payout ledger.
type LedgerRepository struct {
	db *sql.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// LedgerItems retrieves a miner's most recent ledger entries.
func (r *LedgerRepository) LedgerItems(ctx context.Context, miner string, limit int) ([]stats.LedgerItem, error) {
	query := `
		SELECT currency, amount, created_at
		FROM ledger_entries
		WHERE miner = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, miner, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var items []stats.LedgerItem
	for rows.Next() {
		var item stats.LedgerItem
		if err := rows.Scan(&item.Currency, &item.Amount, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	return items, nil
}

// BlockRepository reads and records found blocks.
type BlockRepository struct {
	db *sql.DB
}

// NewBlockRepository creates a new block repository
func NewBlockRepository(db *sql.DB) *BlockRepository {
	return &BlockRepository{db: db}
}

// LastBlockTime returns when the most recent block for an algorithm was
// found.
func (r *BlockRepository) LastBlockTime(ctx context.Context, algo, mergedType string) (time.Time, bool, error) {
	query := `
		SELECT found_at FROM blocks
		WHERE algo = $1 AND merged_type = $2
		ORDER BY found_at DESC
		LIMIT 1`

	var foundAt time.Time
	err := r.db.QueryRowContext(ctx, query, algo, mergedType).Scan(&foundAt)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query last block: %w", err)
	}
	return foundAt, true, nil
}

// RecordBlock inserts a newly found block.
func (r *BlockRepository) RecordBlock(ctx context.Context, block *Block) error {
	query := `
		INSERT INTO blocks (height, hash, algo, merged_type, found_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		block.Height, block.Hash, block.Algo, block.MergedType, block.FoundAt,
	).Scan(&block.ID)
	if err != nil {
		return fmt.Errorf("failed to record block: %w", err)
	}

	return nil
}
