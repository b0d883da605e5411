package stats

import "context"

// mergeOnline folds the out-of-band liveness feed into the worker map. Each
// (worker, host) pair marks that worker online and attaches the display
// endpoint configured for the reporting host. Workers that only appear in
// the feed (no shares yet this window) still get an entry. A feed outage or
// an unrecognized host never fails the aggregation; the worst case is a
// worker showing offline or without an endpoint.
func (a *Aggregator) mergeOnline(ctx context.Context, address string, workers map[string]*WorkerStat) {
	if a.deps.Feed == nil {
		return
	}

	pairs, err := a.deps.Feed.OnlineWorkers(ctx, address)
	if err != nil {
		a.logger.WithUser(address).WithError(err).Warn("liveness feed unavailable")
		return
	}

	for _, pair := range pairs {
		w, ok := workers[pair.Worker]
		if !ok {
			w = &WorkerStat{Name: pair.Worker}
			workers[pair.Worker] = w
		}
		w.Online = true
		w.Server = a.opts.HostEndpoints[pair.Host]
	}
}
