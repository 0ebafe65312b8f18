package exchange

import "time"

// Status of an exchange connection.
type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
	StatusError    Status = "error"
)

// Connection links an account to a crypto exchange. API credentials are
// stored encrypted; only a masked key suffix is exposed over the API.
type Connection struct {
	ID              string    `json:"id"`
	AccountID       string    `json:"account_id"`
	Exchange        string    `json:"exchange"`
	Label           string    `json:"label"`
	APIKeyCipher    []byte    `json:"-"`
	APISecretCipher []byte    `json:"-"`
	KeySuffix       string    `json:"key_suffix"`
	Status          Status    `json:"status"`
	StatusDetail    string    `json:"status_detail,omitempty"`
	AutoSync        bool      `json:"auto_sync"`
	SyncSchedule    string    `json:"sync_schedule,omitempty"`
	LastSyncAt      time.Time `json:"last_sync_at,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Credentials are a decrypted key pair, held in memory only while talking to
// the exchange.
type Credentials struct {
	APIKey    string
	APISecret string
}
