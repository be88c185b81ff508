package probe

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"hostpin/internal/storage/models"
	apperrors "hostpin/pkg/errors"
)

// minWorkers is the floor on the probe pool size.
const minWorkers = 4

// Batch holds the outcome of probing a full address × domain cross product.
type Batch struct {
	Table     models.LatencyTable
	Outcomes  []*models.Outcome // in pair order: domain-major, address-minor
	Tested    int
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// ProgressFunc is called each time a single probe completes.
type ProgressFunc func(outcome *models.Outcome, current, total int)

// Observer receives every probe outcome, e.g. for metrics.
type Observer interface {
	ObserveProbe(strategy string, outcome *models.Outcome)
}

// AggregatorConfig holds configuration for the Aggregator.
type AggregatorConfig struct {
	Workers  int
	Timeout  time.Duration
	Strategy Strategy
	Observer Observer
	Logger   *zap.Logger
}

// Aggregator fans probes out to a bounded worker pool and builds the
// per-domain latency table.
type Aggregator struct {
	config AggregatorConfig
	log    *zap.Logger
}

// NewAggregator creates a new Aggregator.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	if cfg.Workers <= 0 {
		cfg.Workers = 16
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.Strategy == nil {
		cfg.Strategy = &HTTPSStrategy{}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{config: cfg, log: log.Named("probe")}
}

// PoolSize returns the number of concurrent probes used for pairs units of work.
func PoolSize(configured, pairs int) int {
	return max(minWorkers, min(configured, pairs))
}

// ProbeOne probes a single pair under its own timeout. It never fails; every
// error is folded into an unsuccessful outcome.
func (a *Aggregator) ProbeOne(ctx context.Context, address, domain string) *models.Outcome {
	probeCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	outcome := &models.Outcome{Domain: domain, Address: address}
	elapsed, err := a.config.Strategy.Probe(probeCtx, address, domain)
	if err != nil {
		outcome.Err = err
	} else {
		ms := float64(elapsed) / float64(time.Millisecond)
		outcome.Success = true
		outcome.LatencyMS = &ms
	}

	if a.config.Observer != nil {
		a.config.Observer.ObserveProbe(a.config.Strategy.Name(), outcome)
	}
	if outcome.Success {
		a.log.Debug("probe succeeded",
			zap.String("address", address), zap.String("domain", domain),
			zap.Float64("latency_ms", *outcome.LatencyMS))
	} else {
		a.log.Debug("probe failed",
			zap.String("address", address), zap.String("domain", domain),
			zap.String("kind", string(apperrors.KindOf(err))), zap.Error(err))
	}
	return outcome
}

// Aggregate probes every (domain, address) pair exactly once using a
// semaphore-based worker pool and returns the latency table.
func (a *Aggregator) Aggregate(ctx context.Context, addresses, domains []string, progress ProgressFunc) *Batch {
	startTime := time.Now()

	type pair struct{ domain, address string }
	pairs := make([]pair, 0, len(addresses)*len(domains))
	for _, d := range domains {
		for _, addr := range addresses {
			pairs = append(pairs, pair{domain: d, address: addr})
		}
	}

	batch := &Batch{}
	outcomes := make([]*models.Outcome, len(pairs))
	var mu sync.Mutex
	var completed int

	sem := semaphore.NewWeighted(int64(PoolSize(a.config.Workers, len(pairs))))
	var wg sync.WaitGroup

	for i, p := range pairs {
		wg.Add(1)
		go func(idx int, p pair) {
			defer wg.Done()

			var outcome *models.Outcome
			if err := sem.Acquire(ctx, 1); err != nil {
				outcome = &models.Outcome{
					Domain:  p.domain,
					Address: p.address,
					Err:     newError(apperrors.KindTimeout, p.address, p.domain, err),
				}
			} else {
				outcome = a.ProbeOne(ctx, p.address, p.domain)
				sem.Release(1)
			}

			mu.Lock()
			outcomes[idx] = outcome
			completed++
			current := completed
			if outcome.Success {
				batch.Succeeded++
			} else {
				batch.Failed++
			}
			mu.Unlock()

			if progress != nil {
				progress(outcome, current, len(pairs))
			}
		}(i, p)
	}

	wg.Wait()

	batch.Outcomes = outcomes
	batch.Tested = len(outcomes)
	batch.Table = BuildTable(domains, outcomes)
	batch.Duration = time.Since(startTime)
	return batch
}

// BuildTable folds outcomes into a latency table with an entry for every
// domain. The result does not depend on the order of outcomes.
func BuildTable(domains []string, outcomes []*models.Outcome) models.LatencyTable {
	table := make(models.LatencyTable, len(domains))
	for _, d := range domains {
		table[d] = make(map[string]float64)
	}
	for _, o := range outcomes {
		if o == nil || !o.Success || o.LatencyMS == nil {
			continue
		}
		if table[o.Domain] == nil {
			table[o.Domain] = make(map[string]float64)
		}
		table[o.Domain][o.Address] = *o.LatencyMS
	}
	return table
}
