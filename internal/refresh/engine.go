package refresh

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"bloomCache/internal/bloom"
	"bloomCache/internal/metrics"
	"bloomCache/internal/model"
	"bloomCache/internal/pairs"
	"bloomCache/internal/retry"
)

// Fetcher retrieves reserves for a batch of pairs. Results are aligned with
// pairs; a nil entry means that pair's call failed. An error means the whole
// batch failed.
type Fetcher interface {
	FetchReserves(ctx context.Context, pairs []common.Address) ([]*model.Reserves, error)
	FetchReservesAt(ctx context.Context, pairs []common.Address, block *big.Int) ([]*model.Reserves, error)
}

// Sink receives block outcomes and periodic effectiveness snapshots.
type Sink interface {
	PutOutcome(ctx context.Context, outcome model.BlockOutcome) error
	PutSnapshot(ctx context.Context, snapshot model.Effectiveness) error
}

// Config tunes the engine.
type Config struct {
	Topic        common.Hash
	StatsEvery   uint64
	MaxInFlight  int
	FetchTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Option customizes an Engine.
type Option func(*Engine)

// WithProbe replaces the go-ethereum bloom probe.
func WithProbe(p bloom.Probe) Option {
	return func(e *Engine) { e.probe = p }
}

// WithSink records every block outcome and snapshot.
func WithSink(s Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithMetrics reports to the given collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithErrorHandler is called for every fetch failure and malformed block.
func WithErrorHandler(fn func(error)) Option {
	return func(e *Engine) { e.onError = fn }
}

// Engine gates reserve fetches on block blooms and keeps the store current.
//
// HandleBlock is called sequentially by the feed. Fetch and reconcile run on
// a worker pool and complete in any order; the store's height guard keeps
// late results from overwriting newer ones.
type Engine struct {
	cfg        Config
	store      *pairs.Store
	fetcher    Fetcher
	probe      bloom.Probe
	tracker    *Tracker
	reconciler *Reconciler
	metrics    *metrics.Metrics
	sink       Sink
	onError    func(error)
	pool       pond.Pool
	logger     *zap.Logger
}

func NewEngine(cfg Config, store *pairs.Store, fetcher Fetcher, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 32
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}

	e := &Engine{
		cfg:     cfg,
		store:   store,
		fetcher: fetcher,
		probe:   bloom.EthProbe{},
		tracker: NewTracker(),
		onError: func(error) {},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.New(nil, "")
	}
	e.reconciler = NewReconciler(store, e.tracker, e.metrics, logger)
	e.pool = pond.NewPool(cfg.MaxInFlight)
	e.metrics.PairsTracked.Set(float64(store.Len()))

	return e
}

// Tracker exposes the effectiveness counters.
func (e *Engine) Tracker() *Tracker {
	return e.tracker
}

// Seed fetches every tracked pair at the head block and stores the results
// unconditionally. Pairs whose call failed keep zero reserves at height 0.
// It returns the number of pairs seeded.
func (e *Engine) Seed(ctx context.Context, head uint64) (int, error) {
	addrs := e.store.Addresses()
	if len(addrs) == 0 {
		return 0, nil
	}

	var results []*model.Reserves
	block := new(big.Int).SetUint64(head)
	err := retry.Do(ctx, e.cfg.MaxRetries, e.cfg.RetryBackoff, func(ctx context.Context) error {
		res, err := e.fetcher.FetchReservesAt(ctx, addrs, block)
		if err != nil {
			e.logger.Warn("seed fetch failed", zap.Uint64("block", head), zap.Error(err))
			return err
		}
		results = res
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("seed reserves at block %d: %w", head, err)
	}

	seeded := 0
	for i, addr := range addrs {
		if i >= len(results) || results[i] == nil {
			e.logger.Warn("seed missing pair", zap.String("pair", addr.Hex()))
			continue
		}
		if err := e.store.Seed(addr, *results[i], head); err != nil {
			return seeded, fmt.Errorf("seed pair %s: %w", addr.Hex(), err)
		}
		seeded++
	}

	e.logger.Info("cache seeded",
		zap.Uint64("block", head),
		zap.Int("pairs", len(addrs)),
		zap.Int("seeded", seeded),
	)
	return seeded, nil
}

// HandleBlock runs the bloom gate for one block and, when any tracked pair
// may have changed, submits the fetch without waiting for it.
func (e *Engine) HandleBlock(ctx context.Context, block model.Block) {
	if n := e.tracker.BlockProcessed(); e.cfg.StatsEvery > 0 && n%e.cfg.StatsEvery == 0 {
		e.logStats(ctx, false)
	}

	if !block.Valid() {
		reason := malformedReason(block)
		e.tracker.MalformedBlock()
		e.metrics.BlocksTotal.WithLabelValues(string(model.OutcomeMalformed)).Inc()
		e.logger.Warn("malformed block", zap.String("reason", reason), zap.String("hash", block.Hash.Hex()))
		e.onError(&MalformedBlockError{Reason: reason})
		e.record(ctx, newOutcome(block, model.OutcomeMalformed, reason))
		return
	}

	height := block.Number.Uint64()
	e.metrics.LastProcessedBlock.Set(float64(height))

	candidates, topicHit := SelectCandidates(e.probe, block.Bloom, e.cfg.Topic, e.store.Addresses())
	if len(candidates) == 0 {
		reason := "no tracked pair in bloom"
		switch {
		case block.Bloom == nil:
			reason = "no bloom"
		case !topicHit:
			reason = "topic not in bloom"
		}
		e.tracker.TrueNegative()
		e.metrics.BlocksTotal.WithLabelValues(string(model.OutcomeTrueNegative)).Inc()
		e.logger.Debug("true negative",
			zap.Uint64("block", height),
			zap.String("hash", block.Hash.Hex()),
			zap.String("reason", reason),
		)
		e.record(ctx, newOutcome(block, model.OutcomeTrueNegative, reason))
		return
	}

	e.tracker.CandidatesFound()
	e.metrics.InFlight.Inc()
	e.pool.Submit(func() {
		defer e.metrics.InFlight.Dec()
		e.process(ctx, block, height, candidates)
	})
}

func (e *Engine) process(ctx context.Context, block model.Block, height uint64, candidates []common.Address) {
	start := time.Now()
	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	results, err := e.fetcher.FetchReserves(fetchCtx, candidates)
	cancel()
	elapsed := time.Since(start)

	e.metrics.FetchDuration.Observe(elapsed.Seconds())
	e.metrics.Candidates.Observe(float64(len(candidates)))

	if err != nil {
		fetchErr := &FetchError{Block: height, Candidates: len(candidates), Err: err}
		e.tracker.ErrorCall()
		e.metrics.BlocksTotal.WithLabelValues(string(model.OutcomeError)).Inc()
		e.logger.Warn("fetch failed",
			zap.Uint64("block", height),
			zap.String("hash", block.Hash.Hex()),
			zap.Int("candidates", len(candidates)),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		e.onError(fetchErr)

		outcome := newOutcome(block, model.OutcomeError, "")
		outcome.Candidates = len(candidates)
		outcome.DurationMs = elapsed.Milliseconds()
		outcome.Error = err.Error()
		e.record(ctx, outcome)
		return
	}

	rec := e.reconciler.Reconcile(height, candidates, results)
	kind := rec.Outcome()
	e.metrics.BlocksTotal.WithLabelValues(string(kind)).Inc()

	if kind == model.OutcomeNeeded {
		e.logger.Info("needed call",
			zap.Uint64("block", height),
			zap.String("hash", block.Hash.Hex()),
			zap.Int("candidates", rec.Candidates),
			zap.Int("updated", rec.Updated),
			zap.Int("unnecessary", rec.Unnecessary()),
			zap.Duration("duration", elapsed),
		)
	} else {
		e.logger.Info("unnecessary call",
			zap.Uint64("block", height),
			zap.String("hash", block.Hash.Hex()),
			zap.Int("candidates", rec.Candidates),
			zap.Int("absent", rec.Absent),
			zap.Int("stale", rec.Stale),
			zap.Duration("duration", elapsed),
		)
	}

	outcome := newOutcome(block, kind, "")
	outcome.Candidates = rec.Candidates
	outcome.Updated = rec.Updated
	outcome.Unchanged = rec.Unchanged
	outcome.Stale = rec.Stale
	outcome.Absent = rec.Absent
	outcome.DurationMs = elapsed.Milliseconds()
	e.record(ctx, outcome)
}

// Close stops accepting blocks, waits for submitted pipelines and logs a
// final snapshot.
func (e *Engine) Close() {
	e.pool.StopAndWait()
	e.logStats(context.Background(), true)
}

func (e *Engine) logStats(ctx context.Context, final bool) {
	snap := e.tracker.Snapshot()
	e.logger.Info("stats",
		zap.Bool("final", final),
		zap.Uint64("blocks", snap.BlocksProcessed),
		zap.Uint64("true_negatives", snap.TrueNegatives),
		zap.Uint64("with_candidates", snap.BlocksWithCandidates),
		zap.Uint64("needed", snap.NeededCalls),
		zap.Uint64("unnecessary", snap.UnnecessaryCalls),
		zap.Uint64("errors", snap.ErrorCalls),
		zap.Uint64("malformed", snap.MalformedBlocks),
		zap.Uint64("stale", snap.StaleDiscards),
		zap.Uint64("pairs_updated", snap.PairsUpdated),
		zap.Float64("hit_rate", snap.HitRate()),
	)
	if e.sink == nil {
		return
	}
	if err := e.sink.PutSnapshot(ctx, snap); err != nil {
		e.logger.Warn("write snapshot failed", zap.Error(err))
	}
}

func (e *Engine) record(ctx context.Context, outcome model.BlockOutcome) {
	if e.sink == nil {
		return
	}
	if err := e.sink.PutOutcome(ctx, outcome); err != nil {
		e.logger.Warn("write outcome failed", zap.Uint64("block", outcome.BlockNumber), zap.Error(err))
	}
}

func malformedReason(block model.Block) string {
	switch {
	case block.Number == nil:
		return "missing block number"
	case block.Number.Sign() < 0 || !block.Number.IsUint64():
		return "block number out of range"
	default:
		return "missing block hash"
	}
}
