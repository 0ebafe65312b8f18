package journal

import "time"

// Note is a dated journal entry shown alongside the trading calendar.
type Note struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Day       time.Time `json:"day"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Mood      string    `json:"mood,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
