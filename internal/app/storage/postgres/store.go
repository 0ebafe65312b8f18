package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/tradevault/platform/internal/app/domain/account"
	"github.com/tradevault/platform/internal/app/domain/affiliate"
	"github.com/tradevault/platform/internal/app/domain/billing"
	"github.com/tradevault/platform/internal/app/domain/exchange"
	"github.com/tradevault/platform/internal/app/domain/journal"
	"github.com/tradevault/platform/internal/app/domain/pricefeed"
	syncdomain "github.com/tradevault/platform/internal/app/domain/sync"
	"github.com/tradevault/platform/internal/app/domain/trade"
	"github.com/tradevault/platform/internal/app/domain/wallet"
	"github.com/tradevault/platform/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.AccountStore = (*Store)(nil)
var _ storage.TradeStore = (*Store)(nil)
var _ storage.NoteStore = (*Store)(nil)
var _ storage.ConnectionStore = (*Store)(nil)
var _ storage.SyncStore = (*Store)(nil)
var _ storage.AffiliateStore = (*Store)(nil)
var _ storage.BillingStore = (*Store)(nil)
var _ storage.PriceFeedStore = (*Store)(nil)
var _ storage.WalletStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func fromNullTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time
}

func marshalTags(tags []string) ([]byte, error) {
	if tags == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(tags)
}

func unmarshalTags(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var tags []string
	_ = json.Unmarshal(raw, &tags)
	if len(tags) == 0 {
		return nil
	}
	return tags
}

// --- AccountStore -----------------------------------------------------------

type accountRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	DisplayName  string    `db:"display_name"`
	Role         string    `db:"role"`
	Tier         string    `db:"tier"`
	ReferredBy   string    `db:"referred_by"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r accountRow) domain() account.Account {
	return account.Account{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		DisplayName:  r.DisplayName,
		Role:         account.Role(r.Role),
		Tier:         account.Tier(r.Tier),
		ReferredBy:   r.ReferredBy,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (s *Store) CreateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tv_accounts (id, email, password_hash, display_name, role, tier, referred_by, created_at, updated_at)
		VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8, $9)
	`, acct.ID, acct.Email, acct.PasswordHash, acct.DisplayName, acct.Role, acct.Tier, acct.ReferredBy, acct.CreatedAt, acct.UpdatedAt)
	if err != nil {
		return account.Account{}, err
	}
	return acct, nil
}

func (s *Store) UpdateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	existing, err := s.GetAccount(ctx, acct.ID)
	if err != nil {
		return account.Account{}, err
	}

	acct.Email = existing.Email
	acct.CreatedAt = existing.CreatedAt
	acct.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE tv_accounts
		SET password_hash = $2, display_name = $3, role = $4, tier = $5, referred_by = $6, updated_at = $7
		WHERE id = $1
	`, acct.ID, acct.PasswordHash, acct.DisplayName, acct.Role, acct.Tier, acct.ReferredBy, acct.UpdatedAt)
	if err != nil {
		return account.Account{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return account.Account{}, sql.ErrNoRows
	}
	return acct, nil
}

const accountColumns = `id, email, password_hash, display_name, role, tier, referred_by, created_at, updated_at`

func (s *Store) GetAccount(ctx context.Context, id string) (account.Account, error) {
	var row accountRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+accountColumns+` FROM tv_accounts WHERE id = $1
	`, id)
	if err != nil {
		return account.Account{}, err
	}
	return row.domain(), nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (account.Account, error) {
	var row accountRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+accountColumns+` FROM tv_accounts WHERE email = lower($1)
	`, email)
	if err != nil {
		return account.Account{}, err
	}
	return row.domain(), nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]account.Account, error) {
	var rows []accountRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+accountColumns+` FROM tv_accounts ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	result := make([]account.Account, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tv_accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- TradeStore -------------------------------------------------------------

type tradeRow struct {
	ID           string          `db:"id"`
	AccountID    string          `db:"account_id"`
	ConnectionID string          `db:"connection_id"`
	ExternalID   string          `db:"external_id"`
	Symbol       string          `db:"symbol"`
	Side         string          `db:"side"`
	Quantity     decimal.Decimal `db:"quantity"`
	EntryPrice   decimal.Decimal `db:"entry_price"`
	ExitPrice    decimal.Decimal `db:"exit_price"`
	Fees         decimal.Decimal `db:"fees"`
	PnL          decimal.Decimal `db:"pnl"`
	Currency     string          `db:"currency"`
	Source       string          `db:"source"`
	Tags         []byte          `db:"tags"`
	OpenedAt     time.Time       `db:"opened_at"`
	ClosedAt     time.Time       `db:"closed_at"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

func (r tradeRow) domain() trade.Trade {
	return trade.Trade{
		ID:           r.ID,
		AccountID:    r.AccountID,
		ConnectionID: r.ConnectionID,
		ExternalID:   r.ExternalID,
		Symbol:       r.Symbol,
		Side:         trade.Side(r.Side),
		Quantity:     r.Quantity,
		EntryPrice:   r.EntryPrice,
		ExitPrice:    r.ExitPrice,
		Fees:         r.Fees,
		PnL:          r.PnL,
		Currency:     r.Currency,
		Source:       trade.Source(r.Source),
		Tags:         unmarshalTags(r.Tags),
		OpenedAt:     r.OpenedAt,
		ClosedAt:     r.ClosedAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

const tradeColumns = `id, account_id, connection_id, external_id, symbol, side, quantity, entry_price, exit_price, fees, pnl, currency, source, tags, opened_at, closed_at, created_at, updated_at`

func (s *Store) CreateTrade(ctx context.Context, t trade.Trade) (trade.Trade, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	tagsJSON, err := marshalTags(t.Tags)
	if err != nil {
		return trade.Trade{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tv_trades (`+tradeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, t.ID, t.AccountID, t.ConnectionID, t.ExternalID, t.Symbol, t.Side, t.Quantity, t.EntryPrice,
		t.ExitPrice, t.Fees, t.PnL, t.Currency, t.Source, tagsJSON, t.OpenedAt, t.ClosedAt, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return trade.Trade{}, err
	}
	return t, nil
}

func (s *Store) UpdateTrade(ctx context.Context, t trade.Trade) (trade.Trade, error) {
	existing, err := s.GetTrade(ctx, t.ID)
	if err != nil {
		return trade.Trade{}, err
	}

	t.AccountID = existing.AccountID
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now().UTC()

	tagsJSON, err := marshalTags(t.Tags)
	if err != nil {
		return trade.Trade{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE tv_trades
		SET symbol = $2, side = $3, quantity = $4, entry_price = $5, exit_price = $6, fees = $7,
		    pnl = $8, currency = $9, tags = $10, opened_at = $11, closed_at = $12, updated_at = $13
		WHERE id = $1
	`, t.ID, t.Symbol, t.Side, t.Quantity, t.EntryPrice, t.ExitPrice, t.Fees,
		t.PnL, t.Currency, tagsJSON, t.OpenedAt, t.ClosedAt, t.UpdatedAt)
	if err != nil {
		return trade.Trade{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return trade.Trade{}, sql.ErrNoRows
	}
	return t, nil
}

func (s *Store) GetTrade(ctx context.Context, id string) (trade.Trade, error) {
	var row tradeRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+tradeColumns+` FROM tv_trades WHERE id = $1
	`, id)
	if err != nil {
		return trade.Trade{}, err
	}
	return row.domain(), nil
}

func (s *Store) GetTradeByExternalID(ctx context.Context, connectionID, externalID string) (trade.Trade, error) {
	var row tradeRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+tradeColumns+` FROM tv_trades WHERE connection_id = $1 AND external_id = $2
	`, connectionID, externalID)
	if err != nil {
		return trade.Trade{}, err
	}
	return row.domain(), nil
}

func (s *Store) ListTrades(ctx context.Context, filter storage.TradeFilter) ([]trade.Trade, error) {
	var rows []tradeRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+tradeColumns+` FROM tv_trades
		WHERE ($1 = '' OR account_id = $1)
		  AND ($2 = '' OR connection_id = $2)
		  AND ($3 = '' OR upper(symbol) = upper($3))
		  AND ($4::timestamptz IS NULL OR closed_at >= $4)
		  AND ($5::timestamptz IS NULL OR closed_at <= $5)
		ORDER BY closed_at
	`, filter.AccountID, filter.ConnectionID, filter.Symbol, toNullTime(filter.From), toNullTime(filter.To))
	if err != nil {
		return nil, err
	}
	var result []trade.Trade
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

func (s *Store) DeleteTrade(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tv_trades WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- NoteStore --------------------------------------------------------------

type noteRow struct {
	ID        string    `db:"id"`
	AccountID string    `db:"account_id"`
	Day       time.Time `db:"day"`
	Title     string    `db:"title"`
	Body      string    `db:"body"`
	Mood      string    `db:"mood"`
	Tags      []byte    `db:"tags"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r noteRow) domain() journal.Note {
	return journal.Note{
		ID:        r.ID,
		AccountID: r.AccountID,
		Day:       r.Day,
		Title:     r.Title,
		Body:      r.Body,
		Mood:      r.Mood,
		Tags:      unmarshalTags(r.Tags),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

const noteColumns = `id, account_id, day, title, body, mood, tags, created_at, updated_at`

func (s *Store) CreateNote(ctx context.Context, n journal.Note) (journal.Note, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now

	tagsJSON, err := marshalTags(n.Tags)
	if err != nil {
		return journal.Note{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tv_notes (`+noteColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, n.ID, n.AccountID, n.Day, n.Title, n.Body, n.Mood, tagsJSON, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return journal.Note{}, err
	}
	return n, nil
}

func (s *Store) UpdateNote(ctx context.Context, n journal.Note) (journal.Note, error) {
	existing, err := s.GetNote(ctx, n.ID)
	if err != nil {
		return journal.Note{}, err
	}

	n.AccountID = existing.AccountID
	n.CreatedAt = existing.CreatedAt
	n.UpdatedAt = time.Now().UTC()

	tagsJSON, err := marshalTags(n.Tags)
	if err != nil {
		return journal.Note{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE tv_notes
		SET day = $2, title = $3, body = $4, mood = $5, tags = $6, updated_at = $7
		WHERE id = $1
	`, n.ID, n.Day, n.Title, n.Body, n.Mood, tagsJSON, n.UpdatedAt)
	if err != nil {
		return journal.Note{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return journal.Note{}, sql.ErrNoRows
	}
	return n, nil
}

func (s *Store) GetNote(ctx context.Context, id string) (journal.Note, error) {
	var row noteRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+noteColumns+` FROM tv_notes WHERE id = $1
	`, id)
	if err != nil {
		return journal.Note{}, err
	}
	return row.domain(), nil
}

func (s *Store) ListNotes(ctx context.Context, accountID string, from, to time.Time) ([]journal.Note, error) {
	var rows []noteRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+noteColumns+` FROM tv_notes
		WHERE account_id = $1
		  AND ($2::timestamptz IS NULL OR day >= $2)
		  AND ($3::timestamptz IS NULL OR day <= $3)
		ORDER BY day
	`, accountID, toNullTime(from), toNullTime(to))
	if err != nil {
		return nil, err
	}
	var result []journal.Note
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

func (s *Store) DeleteNote(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tv_notes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- ConnectionStore --------------------------------------------------------

type connectionRow struct {
	ID              string       `db:"id"`
	AccountID       string       `db:"account_id"`
	Exchange        string       `db:"exchange"`
	Label           string       `db:"label"`
	APIKeyCipher    []byte       `db:"api_key_cipher"`
	APISecretCipher []byte       `db:"api_secret_cipher"`
	KeySuffix       string       `db:"key_suffix"`
	Status          string       `db:"status"`
	StatusDetail    string       `db:"status_detail"`
	AutoSync        bool         `db:"auto_sync"`
	SyncSchedule    string       `db:"sync_schedule"`
	LastSyncAt      sql.NullTime `db:"last_sync_at"`
	CreatedAt       time.Time    `db:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at"`
}

func (r connectionRow) domain() exchange.Connection {
	return exchange.Connection{
		ID:              r.ID,
		AccountID:       r.AccountID,
		Exchange:        r.Exchange,
		Label:           r.Label,
		APIKeyCipher:    r.APIKeyCipher,
		APISecretCipher: r.APISecretCipher,
		KeySuffix:       r.KeySuffix,
		Status:          exchange.Status(r.Status),
		StatusDetail:    r.StatusDetail,
		AutoSync:        r.AutoSync,
		SyncSchedule:    r.SyncSchedule,
		LastSyncAt:      fromNullTime(r.LastSyncAt),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

const connectionColumns = `id, account_id, exchange, label, api_key_cipher, api_secret_cipher, key_suffix, status, status_detail, auto_sync, sync_schedule, last_sync_at, created_at, updated_at`

func (s *Store) CreateConnection(ctx context.Context, conn exchange.Connection) (exchange.Connection, error) {
	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	conn.CreatedAt = now
	conn.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tv_connections (`+connectionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, conn.ID, conn.AccountID, conn.Exchange, conn.Label, conn.APIKeyCipher, conn.APISecretCipher,
		conn.KeySuffix, conn.Status, conn.StatusDetail, conn.AutoSync, conn.SyncSchedule,
		toNullTime(conn.LastSyncAt), conn.CreatedAt, conn.UpdatedAt)
	if err != nil {
		return exchange.Connection{}, err
	}
	return conn, nil
}

func (s *Store) UpdateConnection(ctx context.Context, conn exchange.Connection) (exchange.Connection, error) {
	existing, err := s.GetConnection(ctx, conn.ID)
	if err != nil {
		return exchange.Connection{}, err
	}

	conn.AccountID = existing.AccountID
	conn.CreatedAt = existing.CreatedAt
	conn.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE tv_connections
		SET exchange = $2, label = $3, api_key_cipher = $4, api_secret_cipher = $5, key_suffix = $6,
		    status = $7, status_detail = $8, auto_sync = $9, sync_schedule = $10, last_sync_at = $11, updated_at = $12
		WHERE id = $1
	`, conn.ID, conn.Exchange, conn.Label, conn.APIKeyCipher, conn.APISecretCipher, conn.KeySuffix,
		conn.Status, conn.StatusDetail, conn.AutoSync, conn.SyncSchedule, toNullTime(conn.LastSyncAt), conn.UpdatedAt)
	if err != nil {
		return exchange.Connection{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return exchange.Connection{}, sql.ErrNoRows
	}
	return conn, nil
}

func (s *Store) GetConnection(ctx context.Context, id string) (exchange.Connection, error) {
	var row connectionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+connectionColumns+` FROM tv_connections WHERE id = $1
	`, id)
	if err != nil {
		return exchange.Connection{}, err
	}
	return row.domain(), nil
}

func (s *Store) ListConnections(ctx context.Context, accountID string) ([]exchange.Connection, error) {
	var rows []connectionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+connectionColumns+` FROM tv_connections
		WHERE $1 = '' OR account_id = $1
		ORDER BY created_at
	`, accountID)
	if err != nil {
		return nil, err
	}
	var result []exchange.Connection
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

func (s *Store) ListAutoSyncConnections(ctx context.Context) ([]exchange.Connection, error) {
	var rows []connectionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+connectionColumns+` FROM tv_connections
		WHERE auto_sync AND status = $1
		ORDER BY created_at
	`, exchange.StatusActive)
	if err != nil {
		return nil, err
	}
	var result []exchange.Connection
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

func (s *Store) DeleteConnection(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tv_connections WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- SyncStore --------------------------------------------------------------

type sessionRow struct {
	ID             string       `db:"id"`
	AccountID      string       `db:"account_id"`
	ConnectionID   string       `db:"connection_id"`
	Kind           string       `db:"kind"`
	Status         string       `db:"status"`
	TradesImported int          `db:"trades_imported"`
	Error          string       `db:"error"`
	StartedAt      sql.NullTime `db:"started_at"`
	FinishedAt     sql.NullTime `db:"finished_at"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
}

func (r sessionRow) domain() syncdomain.Session {
	return syncdomain.Session{
		ID:             r.ID,
		AccountID:      r.AccountID,
		ConnectionID:   r.ConnectionID,
		Kind:           syncdomain.Kind(r.Kind),
		Status:         syncdomain.Status(r.Status),
		TradesImported: r.TradesImported,
		Error:          r.Error,
		StartedAt:      fromNullTime(r.StartedAt),
		FinishedAt:     fromNullTime(r.FinishedAt),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

const sessionColumns = `id, account_id, connection_id, kind, status, trades_imported, error, started_at, finished_at, created_at, updated_at`

func (s *Store) CreateSession(ctx context.Context, sess syncdomain.Session) (syncdomain.Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sess.CreatedAt = now
	sess.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tv_sync_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, sess.ID, sess.AccountID, sess.ConnectionID, sess.Kind, sess.Status, sess.TradesImported,
		sess.Error, toNullTime(sess.StartedAt), toNullTime(sess.FinishedAt), sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return syncdomain.Session{}, err
	}
	return sess, nil
}

func (s *Store) UpdateSession(ctx context.Context, sess syncdomain.Session) (syncdomain.Session, error) {
	existing, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		return syncdomain.Session{}, err
	}

	sess.AccountID = existing.AccountID
	sess.ConnectionID = existing.ConnectionID
	sess.CreatedAt = existing.CreatedAt
	sess.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE tv_sync_sessions
		SET status = $2, trades_imported = $3, error = $4, started_at = $5, finished_at = $6, updated_at = $7
		WHERE id = $1
	`, sess.ID, sess.Status, sess.TradesImported, sess.Error,
		toNullTime(sess.StartedAt), toNullTime(sess.FinishedAt), sess.UpdatedAt)
	if err != nil {
		return syncdomain.Session{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return syncdomain.Session{}, sql.ErrNoRows
	}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (syncdomain.Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+sessionColumns+` FROM tv_sync_sessions WHERE id = $1
	`, id)
	if err != nil {
		return syncdomain.Session{}, err
	}
	return row.domain(), nil
}

func (s *Store) ListSessions(ctx context.Context, connectionID string) ([]syncdomain.Session, error) {
	var rows []sessionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+sessionColumns+` FROM tv_sync_sessions
		WHERE $1 = '' OR connection_id = $1
		ORDER BY created_at DESC
	`, connectionID)
	if err != nil {
		return nil, err
	}
	var result []syncdomain.Session
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

func (s *Store) ListPendingSessions(ctx context.Context) ([]syncdomain.Session, error) {
	var rows []sessionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+sessionColumns+` FROM tv_sync_sessions
		WHERE status = $1
		ORDER BY created_at
	`, syncdomain.StatusPending)
	if err != nil {
		return nil, err
	}
	var result []syncdomain.Session
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

// --- AffiliateStore ---------------------------------------------------------

type affiliateRow struct {
	ID             string          `db:"id"`
	AccountID      string          `db:"account_id"`
	Code           string          `db:"code"`
	CommissionRate decimal.Decimal `db:"commission_rate"`
	Status         string          `db:"status"`
	Accrued        decimal.Decimal `db:"accrued"`
	Paid           decimal.Decimal `db:"paid"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func (r affiliateRow) domain() affiliate.Affiliate {
	return affiliate.Affiliate{
		ID:             r.ID,
		AccountID:      r.AccountID,
		Code:           r.Code,
		CommissionRate: r.CommissionRate,
		Status:         affiliate.Status(r.Status),
		Accrued:        r.Accrued,
		Paid:           r.Paid,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

const affiliateColumns = `id, account_id, code, commission_rate, status, accrued, paid, created_at, updated_at`

func (s *Store) CreateAffiliate(ctx context.Context, a affiliate.Affiliate) (affiliate.Affiliate, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tv_affiliates (`+affiliateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.AccountID, a.Code, a.CommissionRate, a.Status, a.Accrued, a.Paid, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return affiliate.Affiliate{}, err
	}
	return a, nil
}

func (s *Store) UpdateAffiliate(ctx context.Context, a affiliate.Affiliate) (affiliate.Affiliate, error) {
	existing, err := s.GetAffiliate(ctx, a.ID)
	if err != nil {
		return affiliate.Affiliate{}, err
	}

	a.AccountID = existing.AccountID
	a.Code = existing.Code
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE tv_affiliates
		SET commission_rate = $2, status = $3, accrued = $4, paid = $5, updated_at = $6
		WHERE id = $1
	`, a.ID, a.CommissionRate, a.Status, a.Accrued, a.Paid, a.UpdatedAt)
	if err != nil {
		return affiliate.Affiliate{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return affiliate.Affiliate{}, sql.ErrNoRows
	}
	return a, nil
}

func (s *Store) GetAffiliate(ctx context.Context, id string) (affiliate.Affiliate, error) {
	var row affiliateRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+affiliateColumns+` FROM tv_affiliates WHERE id = $1
	`, id)
	if err != nil {
		return affiliate.Affiliate{}, err
	}
	return row.domain(), nil
}

func (s *Store) GetAffiliateByAccount(ctx context.Context, accountID string) (affiliate.Affiliate, error) {
	var row affiliateRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+affiliateColumns+` FROM tv_affiliates WHERE account_id = $1
	`, accountID)
	if err != nil {
		return affiliate.Affiliate{}, err
	}
	return row.domain(), nil
}

func (s *Store) GetAffiliateByCode(ctx context.Context, code string) (affiliate.Affiliate, error) {
	var row affiliateRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+affiliateColumns+` FROM tv_affiliates WHERE code = $1
	`, code)
	if err != nil {
		return affiliate.Affiliate{}, err
	}
	return row.domain(), nil
}

func (s *Store) ListAffiliates(ctx context.Context) ([]affiliate.Affiliate, error) {
	var rows []affiliateRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+affiliateColumns+` FROM tv_affiliates ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	var result []affiliate.Affiliate
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

type payoutRow struct {
	ID          string          `db:"id"`
	AffiliateID string          `db:"affiliate_id"`
	Amount      decimal.Decimal `db:"amount"`
	Currency    string          `db:"currency"`
	Status      string          `db:"status"`
	RequestedAt time.Time       `db:"requested_at"`
	SettledAt   sql.NullTime    `db:"settled_at"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

func (r payoutRow) domain() affiliate.Payout {
	return affiliate.Payout{
		ID:          r.ID,
		AffiliateID: r.AffiliateID,
		Amount:      r.Amount,
		Currency:    r.Currency,
		Status:      affiliate.PayoutStatus(r.Status),
		RequestedAt: r.RequestedAt,
		SettledAt:   fromNullTime(r.SettledAt),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

const payoutColumns = `id, affiliate_id, amount, currency, status, requested_at, settled_at, created_at, updated_at`

func (s *Store) CreatePayout(ctx context.Context, p affiliate.Payout) (affiliate.Payout, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tv_payouts (`+payoutColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.AffiliateID, p.Amount, p.Currency, p.Status, p.RequestedAt, toNullTime(p.SettledAt), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return affiliate.Payout{}, err
	}
	return p, nil
}

func (s *Store) UpdatePayout(ctx context.Context, p affiliate.Payout) (affiliate.Payout, error) {
	existing, err := s.GetPayout(ctx, p.ID)
	if err != nil {
		return affiliate.Payout{}, err
	}

	p.AffiliateID = existing.AffiliateID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE tv_payouts
		SET amount = $2, currency = $3, status = $4, settled_at = $5, updated_at = $6
		WHERE id = $1
	`, p.ID, p.Amount, p.Currency, p.Status, toNullTime(p.SettledAt), p.UpdatedAt)
	if err != nil {
		return affiliate.Payout{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return affiliate.Payout{}, sql.ErrNoRows
	}
	return p, nil
}

func (s *Store) GetPayout(ctx context.Context, id string) (affiliate.Payout, error) {
	var row payoutRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+payoutColumns+` FROM tv_payouts WHERE id = $1
	`, id)
	if err != nil {
		return affiliate.Payout{}, err
	}
	return row.domain(), nil
}

func (s *Store) ListPayouts(ctx context.Context, affiliateID string) ([]affiliate.Payout, error) {
	var rows []payoutRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+payoutColumns+` FROM tv_payouts
		WHERE $1 = '' OR affiliate_id = $1
		ORDER BY created_at
	`, affiliateID)
	if err != nil {
		return nil, err
	}
	var result []affiliate.Payout
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

// --- BillingStore -----------------------------------------------------------

type subscriptionRow struct {
	ID               string       `db:"id"`
	AccountID        string       `db:"account_id"`
	Plan             string       `db:"plan"`
	Status           string       `db:"status"`
	CustomerRef      string       `db:"customer_ref"`
	SubscriptionRef  string       `db:"subscription_ref"`
	CurrentPeriodEnd sql.NullTime `db:"current_period_end"`
	CreatedAt        time.Time    `db:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at"`
}

func (r subscriptionRow) domain() billing.Subscription {
	return billing.Subscription{
		ID:               r.ID,
		AccountID:        r.AccountID,
		Plan:             billing.Plan(r.Plan),
		Status:           billing.SubscriptionStatus(r.Status),
		CustomerRef:      r.CustomerRef,
		SubscriptionRef:  r.SubscriptionRef,
		CurrentPeriodEnd: fromNullTime(r.CurrentPeriodEnd),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

const subscriptionColumns = `id, account_id, plan, status, customer_ref, subscription_ref, current_period_end, created_at, updated_at`

func (s *Store) CreateSubscription(ctx context.Context, sub billing.Subscription) (billing.Subscription, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tv_subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, sub.ID, sub.AccountID, sub.Plan, sub.Status, sub.CustomerRef, sub.SubscriptionRef,
		toNullTime(sub.CurrentPeriodEnd), sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return billing.Subscription{}, err
	}
	return sub, nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub billing.Subscription) (billing.Subscription, error) {
	existing, err := s.getSubscription(ctx, sub.ID)
	if err != nil {
		return billing.Subscription{}, err
	}

	sub.AccountID = existing.AccountID
	sub.CreatedAt = existing.CreatedAt
	sub.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE tv_subscriptions
		SET plan = $2, status = $3, customer_ref = $4, subscription_ref = $5, current_period_end = $6, updated_at = $7
		WHERE id = $1
	`, sub.ID, sub.Plan, sub.Status, sub.CustomerRef, sub.SubscriptionRef,
		toNullTime(sub.CurrentPeriodEnd), sub.UpdatedAt)
	if err != nil {
		return billing.Subscription{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return billing.Subscription{}, sql.ErrNoRows
	}
	return sub, nil
}

func (s *Store) getSubscription(ctx context.Context, id string) (billing.Subscription, error) {
	var row subscriptionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+subscriptionColumns+` FROM tv_subscriptions WHERE id = $1
	`, id)
	if err != nil {
		return billing.Subscription{}, err
	}
	return row.domain(), nil
}

func (s *Store) GetSubscriptionByAccount(ctx context.Context, accountID string) (billing.Subscription, error) {
	var row subscriptionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+subscriptionColumns+` FROM tv_subscriptions WHERE account_id = $1
	`, accountID)
	if err != nil {
		return billing.Subscription{}, err
	}
	return row.domain(), nil
}

func (s *Store) GetSubscriptionByRef(ctx context.Context, subscriptionRef string) (billing.Subscription, error) {
	var row subscriptionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+subscriptionColumns+` FROM tv_subscriptions WHERE subscription_ref = $1
	`, subscriptionRef)
	if err != nil {
		return billing.Subscription{}, err
	}
	return row.domain(), nil
}

func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var seen bool
	err := s.db.GetContext(ctx, &seen, `
		SELECT EXISTS (SELECT 1 FROM tv_billing_events WHERE event_id = $1)
	`, eventID)
	if err != nil {
		return false, err
	}
	return seen, nil
}

func (s *Store) MarkEventProcessed(ctx context.Context, eventID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO tv_billing_events (event_id, processed_at)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, time.Now().UTC())
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// --- PriceFeedStore ---------------------------------------------------------

type feedRow struct {
	ID        string    `db:"id"`
	Symbol    string    `db:"symbol"`
	Quote     string    `db:"quote"`
	Pair      string    `db:"pair"`
	SourceURL string    `db:"source_url"`
	PricePath string    `db:"price_path"`
	Interval  string    `db:"interval"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r feedRow) domain() pricefeed.Feed {
	return pricefeed.Feed{
		ID:        r.ID,
		Symbol:    r.Symbol,
		Quote:     r.Quote,
		Pair:      r.Pair,
		SourceURL: r.SourceURL,
		PricePath: r.PricePath,
		Interval:  r.Interval,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

const feedColumns = `id, symbol, quote, pair, source_url, price_path, interval, active, created_at, updated_at`

func (s *Store) CreateFeed(ctx context.Context, feed pricefeed.Feed) (pricefeed.Feed, error) {
	if feed.ID == "" {
		feed.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	feed.CreatedAt = now
	feed.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tv_feeds (`+feedColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, feed.ID, feed.Symbol, feed.Quote, feed.Pair, feed.SourceURL, feed.PricePath,
		feed.Interval, feed.Active, feed.CreatedAt, feed.UpdatedAt)
	if err != nil {
		return pricefeed.Feed{}, err
	}
	return feed, nil
}

func (s *Store) UpdateFeed(ctx context.Context, feed pricefeed.Feed) (pricefeed.Feed, error) {
	existing, err := s.GetFeed(ctx, feed.ID)
	if err != nil {
		return pricefeed.Feed{}, err
	}

	feed.Symbol = existing.Symbol
	feed.Quote = existing.Quote
	feed.Pair = existing.Pair
	feed.CreatedAt = existing.CreatedAt
	feed.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE tv_feeds
		SET source_url = $2, price_path = $3, interval = $4, active = $5, updated_at = $6
		WHERE id = $1
	`, feed.ID, feed.SourceURL, feed.PricePath, feed.Interval, feed.Active, feed.UpdatedAt)
	if err != nil {
		return pricefeed.Feed{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return pricefeed.Feed{}, sql.ErrNoRows
	}
	return feed, nil
}

func (s *Store) GetFeed(ctx context.Context, id string) (pricefeed.Feed, error) {
	var row feedRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+feedColumns+` FROM tv_feeds WHERE id = $1
	`, id)
	if err != nil {
		return pricefeed.Feed{}, err
	}
	return row.domain(), nil
}

func (s *Store) GetFeedByPair(ctx context.Context, pair string) (pricefeed.Feed, error) {
	var row feedRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+feedColumns+` FROM tv_feeds WHERE upper(pair) = upper($1)
	`, pair)
	if err != nil {
		return pricefeed.Feed{}, err
	}
	return row.domain(), nil
}

func (s *Store) ListFeeds(ctx context.Context) ([]pricefeed.Feed, error) {
	var rows []feedRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+feedColumns+` FROM tv_feeds ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	var result []pricefeed.Feed
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

type quoteRow struct {
	ID          string    `db:"id"`
	FeedID      string    `db:"feed_id"`
	Pair        string    `db:"pair"`
	Price       float64   `db:"price"`
	Source      string    `db:"source"`
	CollectedAt time.Time `db:"collected_at"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r quoteRow) domain() pricefeed.Quote {
	return pricefeed.Quote{
		ID:          r.ID,
		FeedID:      r.FeedID,
		Pair:        r.Pair,
		Price:       r.Price,
		Source:      r.Source,
		CollectedAt: r.CollectedAt,
		CreatedAt:   r.CreatedAt,
	}
}

const quoteColumns = `id, feed_id, pair, price, source, collected_at, created_at`

func (s *Store) CreateQuote(ctx context.Context, q pricefeed.Quote) (pricefeed.Quote, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	q.CreatedAt = now
	if q.CollectedAt.IsZero() {
		q.CollectedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tv_quotes (`+quoteColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, q.ID, q.FeedID, q.Pair, q.Price, q.Source, q.CollectedAt, q.CreatedAt)
	if err != nil {
		return pricefeed.Quote{}, err
	}
	return q, nil
}

func (s *Store) LatestQuote(ctx context.Context, feedID string) (pricefeed.Quote, error) {
	var row quoteRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+quoteColumns+` FROM tv_quotes
		WHERE feed_id = $1
		ORDER BY collected_at DESC
		LIMIT 1
	`, feedID)
	if err != nil {
		return pricefeed.Quote{}, err
	}
	return row.domain(), nil
}

func (s *Store) ListQuotes(ctx context.Context, feedID string, limit int) ([]pricefeed.Quote, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []quoteRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+quoteColumns+` FROM tv_quotes
		WHERE feed_id = $1
		ORDER BY collected_at DESC
		LIMIT $2
	`, feedID, limit)
	if err != nil {
		return nil, err
	}
	var result []pricefeed.Quote
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

// --- WalletStore ------------------------------------------------------------

type walletRow struct {
	ID        string    `db:"id"`
	AccountID string    `db:"account_id"`
	Chain     string    `db:"chain"`
	Address   string    `db:"address"`
	Label     string    `db:"label"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r walletRow) domain() wallet.Wallet {
	return wallet.Wallet{
		ID:        r.ID,
		AccountID: r.AccountID,
		Chain:     r.Chain,
		Address:   r.Address,
		Label:     r.Label,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

const walletColumns = `id, account_id, chain, address, label, created_at, updated_at`

func (s *Store) CreateWallet(ctx context.Context, w wallet.Wallet) (wallet.Wallet, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tv_wallets (`+walletColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, w.ID, w.AccountID, w.Chain, w.Address, w.Label, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return wallet.Wallet{}, err
	}
	return w, nil
}

func (s *Store) UpdateWallet(ctx context.Context, w wallet.Wallet) (wallet.Wallet, error) {
	existing, err := s.GetWallet(ctx, w.ID)
	if err != nil {
		return wallet.Wallet{}, err
	}

	w.AccountID = existing.AccountID
	w.CreatedAt = existing.CreatedAt
	w.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE tv_wallets
		SET chain = $2, address = $3, label = $4, updated_at = $5
		WHERE id = $1
	`, w.ID, w.Chain, w.Address, w.Label, w.UpdatedAt)
	if err != nil {
		return wallet.Wallet{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return wallet.Wallet{}, sql.ErrNoRows
	}
	return w, nil
}

func (s *Store) GetWallet(ctx context.Context, id string) (wallet.Wallet, error) {
	var row walletRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+walletColumns+` FROM tv_wallets WHERE id = $1
	`, id)
	if err != nil {
		return wallet.Wallet{}, err
	}
	return row.domain(), nil
}

func (s *Store) ListWallets(ctx context.Context, accountID string) ([]wallet.Wallet, error) {
	var rows []walletRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+walletColumns+` FROM tv_wallets
		WHERE $1 = '' OR account_id = $1
		ORDER BY created_at
	`, accountID)
	if err != nil {
		return nil, err
	}
	var result []wallet.Wallet
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

func (s *Store) DeleteWallet(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tv_wallets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
