package feed

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"bloomCache/internal/model"
	"bloomCache/internal/retry"
)

const maxResubscribeDelay = 30 * time.Second

// HeaderSource is the part of the chain client the feed reads from.
type HeaderSource interface {
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// Handler is called once per block, in increasing height order.
type Handler func(ctx context.Context, block model.Block)

// Config controls how heads are followed.
type Config struct {
	PollInterval time.Duration
	MaxBackfill  uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// Option customizes a Feed.
type Option func(*Feed)

// WithErrorHandler receives connection and fetch errors. The feed keeps
// running after reporting them.
func WithErrorHandler(fn func(error)) Option {
	return func(f *Feed) { f.onError = fn }
}

// Feed delivers new blocks to a handler. It follows new-head subscriptions
// when the transport supports them and polls otherwise. Blocks skipped
// between two heads are fetched and delivered first, up to MaxBackfill.
// Heights at or below the last delivered one are dropped.
type Feed struct {
	cfg     Config
	source  HeaderSource
	onError func(error)
	logger  *zap.Logger

	last    uint64
	started bool
}

func New(cfg Config, source HeaderSource, logger *zap.Logger, opts ...Option) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}

	f := &Feed{
		cfg:     cfg,
		source:  source,
		onError: func(error) {},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run follows the chain head until ctx is done. It returns nil on
// cancellation; no other condition stops it.
func (f *Feed) Run(ctx context.Context, handler Handler) error {
	delay := f.cfg.RetryBackoff
	for {
		delivered, err := f.subscribe(ctx, handler)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, rpc.ErrNotificationsUnsupported) {
			f.logger.Info("subscriptions unavailable, polling for heads", zap.Duration("interval", f.cfg.PollInterval))
			return f.poll(ctx, handler)
		}
		f.report(err)

		if delivered {
			delay = f.cfg.RetryBackoff
		}
		f.logger.Info("resubscribing", zap.Duration("delay", delay))
		if !sleep(ctx, delay) {
			return nil
		}
		delay *= 2
		if delay > maxResubscribeDelay {
			delay = maxResubscribeDelay
		}
	}
}

// subscribe runs one subscription until it fails. delivered reports whether
// any head arrived on it.
func (f *Feed) subscribe(ctx context.Context, handler Handler) (delivered bool, err error) {
	heads := make(chan *types.Header, 16)
	sub, err := f.source.SubscribeNewHead(ctx, heads)
	if err != nil {
		return false, err
	}
	defer sub.Unsubscribe()
	f.logger.Info("subscribed to new heads")

	for {
		select {
		case <-ctx.Done():
			return delivered, ctx.Err()
		case err := <-sub.Err():
			if err == nil {
				err = errors.New("subscription closed")
			}
			return delivered, fmt.Errorf("new head subscription: %w", err)
		case header := <-heads:
			delivered = true
			f.deliver(ctx, header, handler)
		}
	}
}

func (f *Feed) poll(ctx context.Context, handler Handler) error {
	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	for {
		f.pollOnce(ctx, handler)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (f *Feed) pollOnce(ctx context.Context, handler Handler) {
	latest, err := f.source.LatestBlockNumber(ctx)
	if err != nil {
		f.report(fmt.Errorf("get latest block: %w", err))
		return
	}
	if f.started && latest <= f.last {
		return
	}
	header, err := f.header(ctx, latest)
	if err != nil {
		f.report(err)
		return
	}
	f.deliver(ctx, header, handler)
}

func (f *Feed) deliver(ctx context.Context, header *types.Header, handler Handler) {
	if header == nil || header.Number == nil || !header.Number.IsUint64() {
		handler(ctx, model.BlockFromHeader(header))
		return
	}

	number := header.Number.Uint64()
	if f.started {
		if number <= f.last {
			f.logger.Debug("dropping old head", zap.Uint64("block", number), zap.Uint64("last", f.last))
			return
		}
		if number > f.last+1 {
			f.backfill(ctx, f.last+1, number-1, handler)
		}
	}

	handler(ctx, model.BlockFromHeader(header))
	f.last = number
	f.started = true
}

// backfill delivers the blocks in [from, to], keeping only the newest
// MaxBackfill of them.
func (f *Feed) backfill(ctx context.Context, from, to uint64, handler Handler) {
	missed := to - from + 1
	if missed > f.cfg.MaxBackfill {
		f.logger.Warn("skipping missed blocks",
			zap.Uint64("from", from),
			zap.Uint64("to", to),
			zap.Uint64("missed", missed),
			zap.Uint64("max_backfill", f.cfg.MaxBackfill),
		)
		if f.cfg.MaxBackfill == 0 {
			return
		}
		from = to - f.cfg.MaxBackfill + 1
	}

	for number := from; number <= to; number++ {
		if ctx.Err() != nil {
			return
		}
		header, err := f.header(ctx, number)
		if err != nil {
			f.report(err)
			continue
		}
		handler(ctx, model.BlockFromHeader(header))
		f.last = number
		f.started = true
	}
}

func (f *Feed) header(ctx context.Context, number uint64) (*types.Header, error) {
	var header *types.Header
	err := retry.Do(ctx, f.cfg.MaxRetries, f.cfg.RetryBackoff, func(ctx context.Context) error {
		h, err := f.source.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
		if err != nil {
			return err
		}
		header = h
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get header %d: %w", number, err)
	}
	return header, nil
}

func (f *Feed) report(err error) {
	if err == nil {
		return
	}
	f.logger.Warn("feed error", zap.Error(err))
	f.onError(err)
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
