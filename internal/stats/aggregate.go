package stats

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lucidpool/dashd/pkg/log"
)

// Pseudo-users the rollup pipeline files pool-wide slices under.
const (
	poolUser       = "pool"
	poolRejectUser = "pool_stale"
)

// The rolling "last 10 minutes" metric reads minute slices in
// [now-12m, now-2m): a 10 minute span offset by 2 minutes so the slice still
// being finalized never skews the estimate.
const (
	recentWindow = 10 * time.Minute
	recentOffset = 2 * time.Minute
)

// Options tunes the aggregation engine.
type Options struct {
	HashesPerShare float64
	FeePercent     float64
	HostEndpoints  map[string]string
	LedgerLimit    int
	Now            func() time.Time
}

// Deps are the external collaborators the engine reads from.
type Deps struct {
	Records  RecordStore
	Settings SettingsSource
	Ledger   LedgerSource
	Blocks   BlockSource
	Counters CounterStore
	Feed     OnlineFeed
	Cache    Cache
}

// Aggregator rolls raw share slices up into worker- and pool-level
// statistics. All methods are read-only against the stores and safe for
// concurrent use.
type Aggregator struct {
	deps   Deps
	opts   Options
	logger *log.Logger
}

// NewAggregator creates an aggregation engine.
func NewAggregator(deps Deps, opts Options, logger *log.Logger) *Aggregator {
	if opts.HashesPerShare <= 0 {
		opts.HashesPerShare = 65536
	}
	if opts.LedgerLimit <= 0 {
		opts.LedgerLimit = 20
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Aggregator{
		deps:   deps,
		opts:   opts,
		logger: logger.WithComponent("aggregator"),
	}
}

func (a *Aggregator) now() time.Time {
	return a.opts.Now().UTC()
}

// sharesToHashes converts a share count to a hash count using the configured
// hashes-per-share constant.
func (a *Aggregator) sharesToHashes(shares int64) float64 {
	return a.opts.HashesPerShare * float64(shares)
}

// recentHashrate converts a 10-minute share count into an MH/s estimate.
func (a *Aggregator) recentHashrate(shares int64) float64 {
	return a.sharesToHashes(shares) / 1e6 / recentWindow.Seconds()
}

// Aggregate fetches raw records matching the filter. When windowed, the
// query is limited to the granularity's lookback span; unwindowed fetches
// return full history, which the catch-up compression path relies on when
// the scheduled rollup job has lagged and older slices still need folding.
func (a *Aggregator) Aggregate(ctx context.Context, f Filter, windowed bool) ([]Record, error) {
	if windowed {
		g := f.Granularity
		f.Since = g.Floor(a.now()).Add(-g.Window())
	}
	return a.deps.Records.Records(ctx, f)
}

// Compress folds records into dst as mapping[worker][bucketEpochSeconds] +=
// value. With coarse set, each record is bucketed at the next granularity
// tier up, which is how a finer tier gets folded into a coarser one. Purely
// additive: existing totals are never overwritten, so repeated or
// out-of-order passes accumulate correctly.
func Compress(dst map[string]map[int64]int64, records []Record, coarse bool) {
	for _, r := range records {
		g := r.Granularity
		if coarse {
			g = g.Coarser()
		}
		stamp := g.Floor(r.Time).Unix()

		buckets, ok := dst[r.Worker]
		if !ok {
			buckets = make(map[int64]int64)
			dst[r.Worker] = buckets
		}
		buckets[stamp] += r.Value
	}
}

// CollectUserStats accumulates all aggregate data for one account: per-worker
// accepted/rejected totals across the five-minute and minute tiers, the
// rolling 10-minute activity metric, online status, donation rate, recent
// ledger entries, and the next payout/exchange times. The result is cached
// briefly; failures on the peripheral lookups (settings, ledger, liveness)
// degrade to safe defaults rather than failing the whole call.
func (a *Aggregator) CollectUserStats(ctx context.Context, address string) (UserStats, error) {
	return cached(ctx, a.deps.Cache, "user_stats:"+address, ttlUserStats, func() (UserStats, error) {
		return a.collectUserStats(ctx, address)
	})
}

func (a *Aggregator) collectUserStats(ctx context.Context, address string) (UserStats, error) {
	logger := a.logger.WithUser(address)

	now := Minute.Floor(a.now())
	recentFrom := now.Add(-recentWindow - recentOffset)
	recentTo := now.Add(-recentOffset)

	workers := make(map[string]*WorkerStat)
	stat := func(name string) *WorkerStat {
		w, ok := workers[name]
		if !ok {
			w = &WorkerStat{Name: name}
			workers[name] = w
		}
		return w
	}

	for _, g := range []Granularity{FiveMinute, Minute} {
		recs, err := a.Aggregate(ctx, Filter{User: address, Granularity: g}, true)
		if err != nil {
			return UserStats{}, err
		}
		for _, r := range recs {
			w := stat(r.Worker)
			w.Accepted += r.Value
			if !r.Time.Before(recentFrom) && r.Time.Before(recentTo) {
				w.Last10Shares += r.Value
			}
		}
	}

	for _, g := range []Granularity{FiveMinute, Minute} {
		recs, err := a.Aggregate(ctx, Filter{User: address, Granularity: g, Rejected: true}, true)
		if err != nil {
			return UserStats{}, err
		}
		for _, r := range recs {
			stat(r.Worker).Rejected += r.Value
		}
	}

	a.mergeOnline(ctx, address, workers)

	list := make([]WorkerStat, 0, len(workers))
	for _, w := range workers {
		w.Hashrate = a.recentHashrate(w.Last10Shares)
		if w.Accepted > 0 || w.Rejected > 0 {
			eff := 100 * float64(w.Accepted) / float64(w.Accepted+w.Rejected)
			w.Efficiency = &eff
		}
		list = append(list, *w)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	donation, err := a.deps.Settings.DonationRate(ctx, address)
	if err != nil {
		logger.WithError(err).Warn("settings lookup failed, assuming zero donation")
		donation = decimal.Zero
	}

	items, err := a.deps.Ledger.LedgerItems(ctx, address, a.opts.LedgerLimit)
	if err != nil {
		logger.WithError(err).Warn("ledger lookup failed, omitting account items")
		items = nil
	}

	last10, err := a.last10Shares(ctx, address)
	if err != nil {
		return UserStats{}, err
	}

	return UserStats{
		Workers:         list,
		LedgerItems:     items,
		DonationPercent: donation.Mul(decimal.NewFromInt(100)),
		Last10Shares:    last10,
		Last10Hashrate:  a.recentHashrate(last10),
		NextPayout:      nextPayout(a.now()),
		NextExchange:    nextExchange(a.now()),
		FeePercent:      a.opts.FeePercent,
	}, nil
}

// last10Shares is the account-level rolling activity metric, read from the
// minute tier only and cached independently of the full stats bundle.
func (a *Aggregator) last10Shares(ctx context.Context, user string) (int64, error) {
	return cached(ctx, a.deps.Cache, "last_10_shares:"+user, ttlLast10, func() (int64, error) {
		now := Minute.Floor(a.now())
		recs, err := a.deps.Records.Records(ctx, Filter{
			User:        user,
			Granularity: Minute,
			Since:       now.Add(-recentWindow - recentOffset),
			Until:       now.Add(-recentOffset),
		})
		if err != nil {
			return 0, err
		}
		return sumValues(recs), nil
	})
}

type accRej struct {
	Accepted int64 `json:"accepted"`
	Rejected int64 `json:"rejected"`
}

// PoolAccRej sums pool-wide accepted and rejected share totals over a
// trailing span. Spans up to a day read the five-minute tier for accuracy;
// longer spans read the hourly tier to keep row counts sane.
func (a *Aggregator) PoolAccRej(ctx context.Context, span time.Duration) (accepted, rejected int64, err error) {
	if span <= 0 {
		span = 30 * 24 * time.Hour
	}

	key := fmt.Sprintf("pool_acc_rej:%d", int64(span.Seconds()))
	totals, err := cached(ctx, a.deps.Cache, key, ttlPoolAccRej, func() (accRej, error) {
		g := Hour
		if span <= 24*time.Hour {
			g = FiveMinute
		}
		since := a.now().Add(-span)

		accepts, err := a.deps.Records.Records(ctx, Filter{
			User:        poolUser,
			Granularity: g,
			Since:       since,
		})
		if err != nil {
			return accRej{}, err
		}

		rejects, err := a.deps.Records.Records(ctx, Filter{
			User:        poolRejectUser,
			Granularity: g,
			Rejected:    true,
			Since:       since,
		})
		if err != nil {
			return accRej{}, err
		}

		return accRej{Accepted: sumValues(accepts), Rejected: sumValues(rejects)}, nil
	})
	if err != nil {
		return 0, 0, err
	}
	return totals.Accepted, totals.Rejected, nil
}

// PoolEfficiency derives the pool-wide accepted percentage over a span.
// With no data at all it reports 100: an idle pool has not rejected
// anything, and dividing by zero helps nobody.
func (a *Aggregator) PoolEfficiency(ctx context.Context, span time.Duration) (float64, error) {
	accepted, rejected, err := a.PoolAccRej(ctx, span)
	if err != nil {
		return 0, err
	}
	if accepted == 0 && rejected == 0 {
		return 100, nil
	}
	return 100 * float64(accepted) / float64(accepted+rejected), nil
}

// PoolHashrate estimates the pool-wide hashrate in MH/s from the same
// offset 10-minute window the per-worker estimate uses.
func (a *Aggregator) PoolHashrate(ctx context.Context) (float64, error) {
	return cached(ctx, a.deps.Cache, "pool_hashrate", ttlPoolHashrate, func() (float64, error) {
		now := Minute.Floor(a.now())
		recs, err := a.deps.Records.Records(ctx, Filter{
			User:        poolUser,
			Granularity: Minute,
			Since:       now.Add(-recentWindow - recentOffset),
			Until:       now.Add(-recentOffset),
		})
		if err != nil {
			return 0, err
		}
		return a.recentHashrate(sumValues(recs)), nil
	})
}

type roundSnapshot struct {
	Shares    int64     `json:"shares"`
	FetchedAt time.Time `json:"fetched_at"`
}

// roundSuffix builds the counter key suffix for an algorithm and optional
// merge-mined chain.
func roundSuffix(algo, mergedType string) string {
	if mergedType != "" {
		return algo + "_" + mergedType
	}
	return algo
}

// RoundShares reads the live round-share counter for an algorithm and pairs
// it with the fetch time, so callers can extrapolate forward from it.
func (a *Aggregator) RoundShares(ctx context.Context, algo, mergedType string) (int64, time.Time, error) {
	suffix := roundSuffix(algo, mergedType)
	snap, err := cached(ctx, a.deps.Cache, "round_shares:"+suffix, ttlRoundShares, func() (roundSnapshot, error) {
		shares, err := a.deps.Counters.RoundShares(ctx, suffix)
		if err != nil {
			return roundSnapshot{}, err
		}
		return roundSnapshot{Shares: shares, FetchedAt: a.now()}, nil
	})
	if err != nil {
		return 0, time.Time{}, err
	}
	return snap.Shares, snap.FetchedAt, nil
}

// AdjustedRoundShares extrapolates the cached round-share count forward.
// Given the current hashrate in KH/s it computes shares per second and adds
// the shares expected since the counter was last fetched, so the displayed
// counter advances smoothly between cache refreshes instead of stepping.
func (a *Aggregator) AdjustedRoundShares(ctx context.Context, algo, mergedType string, khashrate float64) (int64, float64, error) {
	shares, fetchedAt, err := a.RoundShares(ctx, algo, mergedType)
	if err != nil {
		return 0, 0, err
	}

	sps := khashrate * 1000
	elapsed := a.now().Sub(fetchedAt).Seconds()
	shares += int64(math.Round(elapsed * sps))
	return shares, sps, nil
}

// AllTimeShares sums an account's full hourly history. Expensive and nearly
// static, so it carries the longest cache lifetime.
func (a *Aggregator) AllTimeShares(ctx context.Context, address string) (int64, error) {
	return cached(ctx, a.deps.Cache, "all_time_shares:"+address, ttlAllTime, func() (int64, error) {
		recs, err := a.Aggregate(ctx, Filter{User: address, Granularity: Hour}, false)
		if err != nil {
			return 0, err
		}
		return sumValues(recs), nil
	})
}

// LastBlockTime reports when the current round started, falling back through
// progressively less precise sources: the last found block, then the oldest
// share slice at each tier, then now.
func (a *Aggregator) LastBlockTime(ctx context.Context, algo, mergedType string) (time.Time, error) {
	key := "last_block_time:" + roundSuffix(algo, mergedType)
	return cached(ctx, a.deps.Cache, key, ttlLastBlock, func() (time.Time, error) {
		if a.deps.Blocks != nil {
			t, found, err := a.deps.Blocks.LastBlockTime(ctx, algo, mergedType)
			if err != nil {
				return time.Time{}, err
			}
			if found {
				return t, nil
			}
		}

		for _, g := range []Granularity{Hour, FiveMinute, Minute} {
			t, found, err := a.deps.Records.EarliestRecordTime(ctx, g)
			if err != nil {
				return time.Time{}, err
			}
			if found {
				return t, nil
			}
		}

		return a.now(), nil
	})
}

func sumValues(records []Record) int64 {
	var total int64
	for _, r := range records {
		total += r.Value
	}
	return total
}

// nextPayout is the next top-of-hour payout run.
func nextPayout(now time.Time) time.Time {
	return now.UTC().Truncate(time.Hour).Add(time.Hour)
}

// nextExchange is the next even-hour exchange run, at least two hours out.
func nextExchange(now time.Time) time.Time {
	next := now.UTC().Truncate(time.Hour).Add(2 * time.Hour)
	if next.Hour()%2 != 0 {
		next = next.Add(time.Hour)
	}
	return next
}
