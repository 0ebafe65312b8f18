package pricefeed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tradevault/platform/internal/app/domain/pricefeed"
	"github.com/tradevault/platform/internal/app/storage"
	"github.com/tradevault/platform/internal/config"
	"github.com/tradevault/platform/pkg/logger"
)

// Service manages spot price feed definitions and collected quotes.
type Service struct {
	store storage.PriceFeedStore
	cache *QuoteCache
	log   *logger.Logger
}

// New constructs a price feed service. The cache is optional; without it all
// quote reads hit the store.
func New(store storage.PriceFeedStore, cache *QuoteCache, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("pricefeed")
	}
	return &Service{store: store, cache: cache, log: log}
}

func pairOf(symbol, quote string) string {
	return strings.ToUpper(symbol) + "/" + strings.ToUpper(quote)
}

// CreateFeed registers a new spot price source.
func (s *Service) CreateFeed(ctx context.Context, symbol, quote, sourceURL, pricePath, interval string) (pricefeed.Feed, error) {
	symbol = strings.TrimSpace(symbol)
	quote = strings.TrimSpace(quote)
	sourceURL = strings.TrimSpace(sourceURL)
	pricePath = strings.TrimSpace(pricePath)
	interval = strings.TrimSpace(interval)

	if symbol == "" || quote == "" {
		return pricefeed.Feed{}, fmt.Errorf("symbol and quote are required")
	}
	if sourceURL == "" {
		return pricefeed.Feed{}, fmt.Errorf("source_url is required")
	}
	if pricePath == "" {
		return pricefeed.Feed{}, fmt.Errorf("price_path is required")
	}
	if interval == "" {
		interval = "1m"
	}
	if _, err := time.ParseDuration(interval); err != nil {
		return pricefeed.Feed{}, fmt.Errorf("interval is invalid: %w", err)
	}

	pair := pairOf(symbol, quote)
	if _, err := s.store.GetFeedByPair(ctx, pair); err == nil {
		return pricefeed.Feed{}, fmt.Errorf("price feed for pair %s already exists", pair)
	}

	feed := pricefeed.Feed{
		Symbol:    strings.ToUpper(symbol),
		Quote:     strings.ToUpper(quote),
		Pair:      pair,
		SourceURL: sourceURL,
		PricePath: pricePath,
		Interval:  interval,
		Active:    true,
	}
	feed, err := s.store.CreateFeed(ctx, feed)
	if err != nil {
		return pricefeed.Feed{}, err
	}
	s.log.WithField("feed_id", feed.ID).
		WithField("pair", feed.Pair).
		Info("price feed created")
	return feed, nil
}

// UpdateFeed updates mutable fields on a feed.
func (s *Service) UpdateFeed(ctx context.Context, feedID string, sourceURL, pricePath, interval *string) (pricefeed.Feed, error) {
	feed, err := s.store.GetFeed(ctx, feedID)
	if err != nil {
		return pricefeed.Feed{}, err
	}

	if sourceURL != nil {
		if trimmed := strings.TrimSpace(*sourceURL); trimmed != "" {
			feed.SourceURL = trimmed
		} else {
			return pricefeed.Feed{}, fmt.Errorf("source_url cannot be empty")
		}
	}
	if pricePath != nil {
		if trimmed := strings.TrimSpace(*pricePath); trimmed != "" {
			feed.PricePath = trimmed
		} else {
			return pricefeed.Feed{}, fmt.Errorf("price_path cannot be empty")
		}
	}
	if interval != nil {
		trimmed := strings.TrimSpace(*interval)
		if _, err := time.ParseDuration(trimmed); err != nil {
			return pricefeed.Feed{}, fmt.Errorf("interval is invalid: %w", err)
		}
		feed.Interval = trimmed
	}

	feed, err = s.store.UpdateFeed(ctx, feed)
	if err != nil {
		return pricefeed.Feed{}, err
	}
	s.log.WithField("feed_id", feed.ID).Info("price feed updated")
	return feed, nil
}

// SetActive toggles collection for a feed.
func (s *Service) SetActive(ctx context.Context, feedID string, active bool) (pricefeed.Feed, error) {
	feed, err := s.store.GetFeed(ctx, feedID)
	if err != nil {
		return pricefeed.Feed{}, err
	}
	if feed.Active == active {
		return feed, nil
	}

	feed.Active = active
	feed, err = s.store.UpdateFeed(ctx, feed)
	if err != nil {
		return pricefeed.Feed{}, err
	}
	s.log.WithField("feed_id", feed.ID).
		WithField("active", active).
		Info("price feed state changed")
	return feed, nil
}

// RecordQuote stores a price observation and refreshes the cache.
func (s *Service) RecordQuote(ctx context.Context, feedID string, price float64, source string, collectedAt time.Time) (pricefeed.Quote, error) {
	if price <= 0 {
		return pricefeed.Quote{}, fmt.Errorf("price must be positive")
	}
	source = strings.TrimSpace(source)
	if source == "" {
		source = "manual"
	}

	feed, err := s.store.GetFeed(ctx, feedID)
	if err != nil {
		return pricefeed.Quote{}, err
	}

	q := pricefeed.Quote{
		FeedID:      feedID,
		Pair:        feed.Pair,
		Price:       price,
		Source:      source,
		CollectedAt: collectedAt.UTC(),
	}
	if q.CollectedAt.IsZero() {
		q.CollectedAt = time.Now().UTC()
	}
	q, err = s.store.CreateQuote(ctx, q)
	if err != nil {
		return pricefeed.Quote{}, err
	}

	if err := s.cache.Put(ctx, q); err != nil {
		s.log.WithError(err).WithField("pair", q.Pair).Warn("quote cache write failed")
	}
	return q, nil
}

// Spot returns the latest quote for a pair, preferring the cache.
func (s *Service) Spot(ctx context.Context, pair string) (pricefeed.Quote, error) {
	pair = strings.ToUpper(strings.TrimSpace(pair))
	if pair == "" {
		return pricefeed.Quote{}, fmt.Errorf("pair is required")
	}

	if q, ok, err := s.cache.Get(ctx, pair); err != nil {
		s.log.WithError(err).WithField("pair", pair).Warn("quote cache read failed")
	} else if ok {
		return q, nil
	}

	feed, err := s.store.GetFeedByPair(ctx, pair)
	if err != nil {
		return pricefeed.Quote{}, fmt.Errorf("unknown pair %s: %w", pair, err)
	}
	q, err := s.store.LatestQuote(ctx, feed.ID)
	if err != nil {
		return pricefeed.Quote{}, fmt.Errorf("no quotes for pair %s: %w", pair, err)
	}

	if err := s.cache.Put(ctx, q); err != nil {
		s.log.WithError(err).WithField("pair", pair).Warn("quote cache write failed")
	}
	return q, nil
}

// History returns recent quotes for a feed, newest first.
func (s *Service) History(ctx context.Context, feedID string, limit int) ([]pricefeed.Quote, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.store.ListQuotes(ctx, feedID, limit)
}

// ListFeeds returns all configured feeds.
func (s *Service) ListFeeds(ctx context.Context) ([]pricefeed.Feed, error) {
	return s.store.ListFeeds(ctx)
}

// GetFeed retrieves a single feed.
func (s *Service) GetFeed(ctx context.Context, feedID string) (pricefeed.Feed, error) {
	return s.store.GetFeed(ctx, feedID)
}

// SeedDefaults provisions feeds from configuration. Pairs that already exist
// are left untouched.
func (s *Service) SeedDefaults(ctx context.Context, seeds []config.FeedSeed) error {
	for _, seed := range seeds {
		pair := pairOf(seed.Symbol, seed.Quote)
		if _, err := s.store.GetFeedByPair(ctx, pair); err == nil {
			continue
		}
		if _, err := s.CreateFeed(ctx, seed.Symbol, seed.Quote, seed.SourceURL, seed.PricePath, seed.Interval); err != nil {
			return fmt.Errorf("seed feed %s: %w", pair, err)
		}
	}
	return nil
}
