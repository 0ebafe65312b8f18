package sync

import "time"

// Kind distinguishes one-off history imports from streaming sessions.
type Kind string

const (
	KindHistorical Kind = "historical"
	KindRealtime   Kind = "realtime"
)

// Status of a sync session. Transitions are monotonic:
// pending -> running -> completed | failed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Session tracks one import run against an exchange connection.
type Session struct {
	ID             string    `json:"id"`
	AccountID      string    `json:"account_id"`
	ConnectionID   string    `json:"connection_id"`
	Kind           Kind      `json:"kind"`
	Status         Status    `json:"status"`
	TradesImported int       `json:"trades_imported"`
	Error          string    `json:"error,omitempty"`
	StartedAt      time.Time `json:"started_at,omitempty"`
	FinishedAt     time.Time `json:"finished_at,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Terminal reports whether the session reached a final state.
func (s Session) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}
