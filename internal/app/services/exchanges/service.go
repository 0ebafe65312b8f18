package exchanges

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tradevault/platform/internal/app/domain/exchange"
	"github.com/tradevault/platform/internal/app/storage"
	"github.com/tradevault/platform/pkg/logger"
)

// supported lists the exchanges the importer knows how to talk to.
var supported = map[string]bool{
	"binance":  true,
	"bybit":    true,
	"coinbase": true,
	"kraken":   true,
	"okx":      true,
}

// Service manages exchange connections and their encrypted credentials.
type Service struct {
	store  storage.ConnectionStore
	secret string
	log    *logger.Logger
}

// New constructs an exchanges service. secret encrypts stored API
// credentials.
func New(store storage.ConnectionStore, secret string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("exchanges")
	}
	return &Service{store: store, secret: secret, log: log}
}

// keySuffix masks an API key down to its trailing characters.
func keySuffix(apiKey string) string {
	const visible = 4
	if len(apiKey) <= visible {
		return apiKey
	}
	return apiKey[len(apiKey)-visible:]
}

// Create links an account to an exchange. Credentials are encrypted before
// they touch storage; only the masked key suffix is kept in the clear.
func (s *Service) Create(ctx context.Context, accountID, exchangeName, label string, creds exchange.Credentials, autoSync bool, schedule string) (exchange.Connection, error) {
	accountID = strings.TrimSpace(accountID)
	exchangeName = strings.ToLower(strings.TrimSpace(exchangeName))
	label = strings.TrimSpace(label)
	schedule = strings.TrimSpace(schedule)

	if accountID == "" {
		return exchange.Connection{}, fmt.Errorf("account_id is required")
	}
	if !supported[exchangeName] {
		return exchange.Connection{}, fmt.Errorf("unsupported exchange %q", exchangeName)
	}
	if creds.APIKey == "" || creds.APISecret == "" {
		return exchange.Connection{}, fmt.Errorf("api_key and api_secret are required")
	}
	if schedule != "" {
		if _, err := cron.ParseStandard(schedule); err != nil {
			return exchange.Connection{}, fmt.Errorf("invalid sync schedule: %w", err)
		}
	}

	keyCipher, err := encrypt(s.secret, []byte(creds.APIKey))
	if err != nil {
		return exchange.Connection{}, err
	}
	secretCipher, err := encrypt(s.secret, []byte(creds.APISecret))
	if err != nil {
		return exchange.Connection{}, err
	}

	conn, err := s.store.CreateConnection(ctx, exchange.Connection{
		AccountID:       accountID,
		Exchange:        exchangeName,
		Label:           label,
		APIKeyCipher:    keyCipher,
		APISecretCipher: secretCipher,
		KeySuffix:       keySuffix(creds.APIKey),
		Status:          exchange.StatusActive,
		AutoSync:        autoSync,
		SyncSchedule:    schedule,
	})
	if err != nil {
		return exchange.Connection{}, err
	}

	s.log.WithField("connection_id", conn.ID).
		WithField("account_id", accountID).
		WithField("exchange", exchangeName).
		Info("exchange connection created")
	return conn, nil
}

// Update applies non-nil fields to a connection.
func (s *Service) Update(ctx context.Context, id string, label *string, autoSync *bool, schedule *string, creds *exchange.Credentials) (exchange.Connection, error) {
	conn, err := s.store.GetConnection(ctx, id)
	if err != nil {
		return exchange.Connection{}, err
	}

	if label != nil {
		conn.Label = strings.TrimSpace(*label)
	}
	if autoSync != nil {
		conn.AutoSync = *autoSync
	}
	if schedule != nil {
		trimmed := strings.TrimSpace(*schedule)
		if trimmed != "" {
			if _, err := cron.ParseStandard(trimmed); err != nil {
				return exchange.Connection{}, fmt.Errorf("invalid sync schedule: %w", err)
			}
		}
		conn.SyncSchedule = trimmed
	}
	if creds != nil {
		if creds.APIKey == "" || creds.APISecret == "" {
			return exchange.Connection{}, fmt.Errorf("api_key and api_secret are required")
		}
		keyCipher, err := encrypt(s.secret, []byte(creds.APIKey))
		if err != nil {
			return exchange.Connection{}, err
		}
		secretCipher, err := encrypt(s.secret, []byte(creds.APISecret))
		if err != nil {
			return exchange.Connection{}, err
		}
		conn.APIKeyCipher = keyCipher
		conn.APISecretCipher = secretCipher
		conn.KeySuffix = keySuffix(creds.APIKey)
		// Fresh credentials clear a previous error state.
		if conn.Status == exchange.StatusError {
			conn.Status = exchange.StatusActive
			conn.StatusDetail = ""
		}
	}

	return s.store.UpdateConnection(ctx, conn)
}

// SetStatus transitions a connection's status.
func (s *Service) SetStatus(ctx context.Context, id string, status exchange.Status, detail string) (exchange.Connection, error) {
	switch status {
	case exchange.StatusActive, exchange.StatusDisabled, exchange.StatusError:
	default:
		return exchange.Connection{}, fmt.Errorf("unknown status %q", status)
	}

	conn, err := s.store.GetConnection(ctx, id)
	if err != nil {
		return exchange.Connection{}, err
	}
	conn.Status = status
	conn.StatusDetail = detail
	return s.store.UpdateConnection(ctx, conn)
}

// MarkSynced stamps the last successful sync time.
func (s *Service) MarkSynced(ctx context.Context, id string, at time.Time) error {
	conn, err := s.store.GetConnection(ctx, id)
	if err != nil {
		return err
	}
	conn.LastSyncAt = at.UTC()
	_, err = s.store.UpdateConnection(ctx, conn)
	return err
}

// Credentials decrypts a connection's API credentials for use against the
// exchange. Callers must not persist the result.
func (s *Service) Credentials(ctx context.Context, id string) (exchange.Credentials, error) {
	conn, err := s.store.GetConnection(ctx, id)
	if err != nil {
		return exchange.Credentials{}, err
	}

	apiKey, err := decrypt(s.secret, conn.APIKeyCipher)
	if err != nil {
		return exchange.Credentials{}, fmt.Errorf("decrypt api key: %w", err)
	}
	apiSecret, err := decrypt(s.secret, conn.APISecretCipher)
	if err != nil {
		return exchange.Credentials{}, fmt.Errorf("decrypt api secret: %w", err)
	}
	return exchange.Credentials{APIKey: string(apiKey), APISecret: string(apiSecret)}, nil
}

// Get returns one connection.
func (s *Service) Get(ctx context.Context, id string) (exchange.Connection, error) {
	return s.store.GetConnection(ctx, id)
}

// List returns an account's connections.
func (s *Service) List(ctx context.Context, accountID string) ([]exchange.Connection, error) {
	return s.store.ListConnections(ctx, accountID)
}

// Delete removes a connection and its stored credentials.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteConnection(ctx, id)
}
