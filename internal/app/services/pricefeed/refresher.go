package pricefeed

import (
	"context"
	"sync"
	"time"

	"github.com/tradevault/platform/internal/app/domain/pricefeed"
	"github.com/tradevault/platform/internal/app/metrics"
	"github.com/tradevault/platform/internal/app/system"
	"github.com/tradevault/platform/pkg/logger"
)

var _ system.Service = (*Refresher)(nil)

// Broadcaster pushes price ticks to connected dashboard clients.
type Broadcaster interface {
	Broadcast(event string, payload interface{})
}

// Refresher polls active feeds on their configured intervals and records the
// resulting quotes.
type Refresher struct {
	service     *Service
	fetcher     Fetcher
	broadcaster Broadcaster
	log         *logger.Logger
	interval    time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	lastRun map[string]time.Time
}

// NewRefresher creates a lifecycle-managed price feed refresher. broadcaster
// may be nil.
func NewRefresher(service *Service, fetcher Fetcher, broadcaster Broadcaster, log *logger.Logger) *Refresher {
	if log == nil {
		log = logger.NewDefault("pricefeed-refresher")
	}
	return &Refresher{
		service:     service,
		fetcher:     fetcher,
		broadcaster: broadcaster,
		log:         log,
		interval:    10 * time.Second,
		lastRun:     make(map[string]time.Time),
	}
}

func (r *Refresher) Name() string { return "pricefeed-refresher" }

func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.tick(runCtx)
			}
		}
	}()

	r.log.Info("price feed refresher started")
	return nil
}

func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("price feed refresher stopped")
	return nil
}

func (r *Refresher) tick(ctx context.Context) {
	if r.service == nil || r.fetcher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	feeds, err := r.service.ListFeeds(ctx)
	if err != nil {
		r.log.WithError(err).Warn("price feed refresher tick failed")
		return
	}

	now := time.Now()
	for _, feed := range feeds {
		if !feed.Active || !r.due(feed, now) {
			continue
		}
		r.refresh(ctx, feed, now)
	}
}

// due checks the feed's own interval against its last successful run.
func (r *Refresher) due(feed pricefeed.Feed, now time.Time) bool {
	every, err := time.ParseDuration(feed.Interval)
	if err != nil || every <= 0 {
		every = time.Minute
	}

	r.mu.Lock()
	last := r.lastRun[feed.ID]
	r.mu.Unlock()

	return now.Sub(last) >= every
}

func (r *Refresher) refresh(ctx context.Context, feed pricefeed.Feed, now time.Time) {
	price, source, err := r.fetcher.Fetch(ctx, feed)
	if err != nil {
		metrics.RecordPriceFetch(false)
		r.log.WithError(err).
			WithField("feed_id", feed.ID).
			WithField("pair", feed.Pair).
			Warn("price fetch failed")
		return
	}
	metrics.RecordPriceFetch(true)

	quote, err := r.service.RecordQuote(ctx, feed.ID, price, source, now)
	if err != nil {
		r.log.WithError(err).
			WithField("feed_id", feed.ID).
			Warn("record quote failed")
		return
	}

	r.mu.Lock()
	r.lastRun[feed.ID] = now
	r.mu.Unlock()

	if r.broadcaster != nil {
		r.broadcaster.Broadcast("price.tick", quote)
	}
}
