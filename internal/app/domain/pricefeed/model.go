package pricefeed

import "time"

// Feed is a configured spot price source. Price extraction uses a JSON path
// applied to the source response body.
type Feed struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Quote     string    `json:"quote"`
	Pair      string    `json:"pair"`
	SourceURL string    `json:"source_url"`
	PricePath string    `json:"price_path"`
	Interval  string    `json:"interval"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Quote is one observed price for a feed.
type Quote struct {
	ID          string    `json:"id"`
	FeedID      string    `json:"feed_id"`
	Pair        string    `json:"pair"`
	Price       float64   `json:"price"`
	Source      string    `json:"source"`
	CollectedAt time.Time `json:"collected_at"`
	CreatedAt   time.Time `json:"created_at"`
}
