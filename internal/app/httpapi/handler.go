// Package httpapi exposes the journal's REST and websocket API.
package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	app "github.com/tradevault/platform/internal/app"
	"github.com/tradevault/platform/internal/app/domain/account"
	"github.com/tradevault/platform/internal/app/domain/billing"
	"github.com/tradevault/platform/internal/app/domain/exchange"
	"github.com/tradevault/platform/internal/app/domain/journal"
	syncdomain "github.com/tradevault/platform/internal/app/domain/sync"
	"github.com/tradevault/platform/internal/app/domain/trade"
	"github.com/tradevault/platform/internal/app/metrics"
	"github.com/tradevault/platform/internal/app/services/trades"
	"github.com/tradevault/platform/internal/app/storage"
	"github.com/tradevault/platform/internal/httputil"
	"github.com/tradevault/platform/internal/middleware"
	"github.com/tradevault/platform/pkg/logger"
)

// Handler bundles HTTP endpoints for the application services.
type Handler struct {
	app     *app.Application
	log     *logger.Logger
	audit   *auditLog
	started time.Time
}

// New returns a handler exposing the REST API. Attach an audit sink with
// WithAuditSink before serving.
func New(application *app.Application, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Handler{
		app:     application,
		log:     log,
		audit:   newAuditLog(200, nil),
		started: time.Now(),
	}
}

// WithAuditSink persists admin audit entries through sink.
func (h *Handler) WithAuditSink(sink AuditSink) {
	h.audit = newAuditLog(200, sink)
}

// Routes builds the API router. Authentication, CORS, rate limiting and
// logging wrap this router at the server level.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)
	r.Get("/auth/me", h.me)
	r.Put("/auth/me", h.updateProfile)
	r.Post("/auth/password", h.changePassword)

	r.Route("/trades", func(r chi.Router) {
		r.Post("/", h.createTrade)
		r.Get("/", h.listTrades)
		r.Get("/{tradeID}", h.getTrade)
		r.Put("/{tradeID}", h.updateTrade)
		r.Delete("/{tradeID}", h.deleteTrade)
	})

	r.Route("/analytics", func(r chi.Router) {
		r.Get("/summary", h.analyticsSummary)
		r.Get("/equity", h.analyticsEquity)
		r.Get("/calendar", h.analyticsCalendar)
		r.Get("/symbols", h.analyticsSymbols)
	})

	r.Route("/journal", func(r chi.Router) {
		r.Post("/", h.createNote)
		r.Get("/", h.listNotes)
		r.Get("/{noteID}", h.getNote)
		r.Put("/{noteID}", h.updateNote)
		r.Delete("/{noteID}", h.deleteNote)
	})

	r.Route("/connections", func(r chi.Router) {
		r.Post("/", h.createConnection)
		r.Get("/", h.listConnections)
		r.Get("/{connectionID}", h.getConnection)
		r.Put("/{connectionID}", h.updateConnection)
		r.Delete("/{connectionID}", h.deleteConnection)
		r.Post("/{connectionID}/sync", h.startSync)
		r.Get("/{connectionID}/sessions", h.listSessions)
	})

	r.Route("/affiliates", func(r chi.Router) {
		r.Post("/", h.enrollAffiliate)
		r.Get("/", h.myAffiliate)
		r.Get("/payouts", h.listMyPayouts)
		r.Post("/payouts", h.requestPayout)
	})

	r.Route("/billing", func(r chi.Router) {
		r.Post("/checkout", h.billingCheckout)
		r.Post("/portal", h.billingPortal)
		r.Get("/subscription", h.billingSubscription)
		r.Post("/webhook", h.billingWebhook)
	})

	r.Route("/feeds", func(r chi.Router) {
		r.Get("/", h.listFeeds)
		r.Get("/{feedID}", h.getFeed)
		r.Get("/{feedID}/quotes", h.feedQuotes)
		r.With(middleware.RequireRole(string(account.RoleAdmin))).Post("/", h.createFeed)
		r.With(middleware.RequireRole(string(account.RoleAdmin))).Put("/{feedID}", h.updateFeed)
	})
	r.Get("/prices/spot", h.spotPrice)

	r.Route("/wallets", func(r chi.Router) {
		r.Post("/", h.createWallet)
		r.Get("/", h.listWallets)
		r.Get("/{walletID}", h.getWallet)
		r.Put("/{walletID}", h.updateWallet)
		r.Delete("/{walletID}", h.deleteWallet)
		r.Get("/{walletID}/balance", h.walletBalance)
		r.Get("/{walletID}/transactions", h.walletTransactions)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireRole(string(account.RoleAdmin)))
		r.Use(h.auditAdmin)
		r.Get("/accounts", h.adminListAccounts)
		r.Put("/accounts/{accountID}/tier", h.adminSetTier)
		r.Put("/accounts/{accountID}/role", h.adminSetRole)
		r.Get("/affiliates", h.adminListAffiliates)
		r.Put("/affiliates/{affiliateID}/rate", h.adminSetCommissionRate)
		r.Post("/payouts/{payoutID}", h.adminSettlePayout)
		r.Get("/audit", h.adminAudit)
	})

	r.Get("/healthz", h.healthz)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/ws", h.ws)

	return r
}

// =============================================================================
// auth
// =============================================================================

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email        string `json:"email"`
		Password     string `json:"password"`
		DisplayName  string `json:"display_name"`
		ReferralCode string `json:"referral_code"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	acct, token, err := h.app.Accounts.Register(r.Context(), payload.Email, payload.Password, payload.DisplayName, payload.ReferralCode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"account": acct, "token": token})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	acct, token, err := h.app.Accounts.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"account": acct, "token": token})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	acct, err := h.app.Accounts.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		DisplayName *string `json:"display_name"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	acct, err := h.app.Accounts.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), payload.DisplayName)
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Current string `json:"current_password"`
		Next    string `json:"new_password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.app.Accounts.ChangePassword(r.Context(), middleware.GetUserID(r.Context()), payload.Current, payload.Next); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// trades
// =============================================================================

type tradePayload struct {
	Symbol     string          `json:"symbol"`
	Side       string          `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	ExitPrice  decimal.Decimal `json:"exit_price"`
	Fees       decimal.Decimal `json:"fees"`
	PnL        decimal.Decimal `json:"pnl"`
	Currency   string          `json:"currency"`
	Tags       []string        `json:"tags"`
	OpenedAt   time.Time       `json:"opened_at"`
	ClosedAt   time.Time       `json:"closed_at"`
}

func (h *Handler) createTrade(w http.ResponseWriter, r *http.Request) {
	var payload tradePayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	t := trade.Trade{
		AccountID:  middleware.GetUserID(r.Context()),
		Symbol:     payload.Symbol,
		Side:       trade.Side(payload.Side),
		Quantity:   payload.Quantity,
		EntryPrice: payload.EntryPrice,
		ExitPrice:  payload.ExitPrice,
		Fees:       payload.Fees,
		PnL:        payload.PnL,
		Currency:   payload.Currency,
		Tags:       payload.Tags,
		OpenedAt:   payload.OpenedAt,
		ClosedAt:   payload.ClosedAt,
	}
	created, err := h.app.Trades.Create(r.Context(), t)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) listTrades(w http.ResponseWriter, r *http.Request) {
	filter, err := tradeFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	list, err := h.app.Trades.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) getTrade(w http.ResponseWriter, r *http.Request) {
	t, ok := h.ownedTrade(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) updateTrade(w http.ResponseWriter, r *http.Request) {
	t, ok := h.ownedTrade(w, r)
	if !ok {
		return
	}

	var payload struct {
		Symbol     *string          `json:"symbol"`
		Side       *string          `json:"side"`
		Quantity   *decimal.Decimal `json:"quantity"`
		EntryPrice *decimal.Decimal `json:"entry_price"`
		ExitPrice  *decimal.Decimal `json:"exit_price"`
		Fees       *decimal.Decimal `json:"fees"`
		PnL        *decimal.Decimal `json:"pnl"`
		Tags       *[]string        `json:"tags"`
		OpenedAt   *time.Time       `json:"opened_at"`
		ClosedAt   *time.Time       `json:"closed_at"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	params := trades.UpdateParams{
		Symbol:     payload.Symbol,
		Quantity:   payload.Quantity,
		EntryPrice: payload.EntryPrice,
		ExitPrice:  payload.ExitPrice,
		Fees:       payload.Fees,
		PnL:        payload.PnL,
		Tags:       payload.Tags,
		OpenedAt:   payload.OpenedAt,
		ClosedAt:   payload.ClosedAt,
	}
	if payload.Side != nil {
		side := trade.Side(*payload.Side)
		params.Side = &side
	}

	updated, err := h.app.Trades.Update(r.Context(), t.ID, params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteTrade(w http.ResponseWriter, r *http.Request) {
	t, ok := h.ownedTrade(w, r)
	if !ok {
		return
	}
	if err := h.app.Trades.Delete(r.Context(), t.ID); err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ownedTrade(w http.ResponseWriter, r *http.Request) (trade.Trade, bool) {
	t, err := h.app.Trades.Get(r.Context(), chi.URLParam(r, "tradeID"))
	if err != nil {
		writeError(w, errStatus(err), err)
		return trade.Trade{}, false
	}
	if t.AccountID != middleware.GetUserID(r.Context()) {
		writeError(w, http.StatusNotFound, storage.ErrNotFound)
		return trade.Trade{}, false
	}
	return t, true
}

// =============================================================================
// analytics
// =============================================================================

func (h *Handler) analyticsSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := tradeFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	summary, err := h.app.Analytics.Summarize(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) analyticsEquity(w http.ResponseWriter, r *http.Request) {
	filter, err := tradeFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	curve, err := h.app.Analytics.EquityCurve(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, curve)
}

func (h *Handler) analyticsCalendar(w http.ResponseWriter, r *http.Request) {
	filter, err := tradeFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	days, err := h.app.Analytics.Calendar(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (h *Handler) analyticsSymbols(w http.ResponseWriter, r *http.Request) {
	filter, err := tradeFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	stats, err := h.app.Analytics.SymbolBreakdown(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// =============================================================================
// journal notes
// =============================================================================

func (h *Handler) createNote(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Day   time.Time `json:"day"`
		Title string    `json:"title"`
		Body  string    `json:"body"`
		Mood  string    `json:"mood"`
		Tags  []string  `json:"tags"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	note := journal.Note{
		AccountID: middleware.GetUserID(r.Context()),
		Day:       payload.Day,
		Title:     payload.Title,
		Body:      payload.Body,
		Mood:      payload.Mood,
		Tags:      payload.Tags,
	}
	created, err := h.app.Journal.Create(r.Context(), note)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) listNotes(w http.ResponseWriter, r *http.Request) {
	from, to, err := timeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	notes, err := h.app.Journal.List(r.Context(), middleware.GetUserID(r.Context()), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *Handler) getNote(w http.ResponseWriter, r *http.Request) {
	note, ok := h.ownedNote(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *Handler) updateNote(w http.ResponseWriter, r *http.Request) {
	note, ok := h.ownedNote(w, r)
	if !ok {
		return
	}

	var payload struct {
		Title *string    `json:"title"`
		Body  *string    `json:"body"`
		Mood  *string    `json:"mood"`
		Day   *time.Time `json:"day"`
		Tags  *[]string  `json:"tags"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Journal.Update(r.Context(), note.ID, payload.Title, payload.Body, payload.Mood, payload.Day, payload.Tags)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteNote(w http.ResponseWriter, r *http.Request) {
	note, ok := h.ownedNote(w, r)
	if !ok {
		return
	}
	if err := h.app.Journal.Delete(r.Context(), note.ID); err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ownedNote(w http.ResponseWriter, r *http.Request) (journal.Note, bool) {
	note, err := h.app.Journal.Get(r.Context(), chi.URLParam(r, "noteID"))
	if err != nil {
		writeError(w, errStatus(err), err)
		return journal.Note{}, false
	}
	if note.AccountID != middleware.GetUserID(r.Context()) {
		writeError(w, http.StatusNotFound, storage.ErrNotFound)
		return journal.Note{}, false
	}
	return note, true
}

// =============================================================================
// exchange connections & sync
// =============================================================================

func (h *Handler) createConnection(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Exchange  string `json:"exchange"`
		Label     string `json:"label"`
		APIKey    string `json:"api_key"`
		APISecret string `json:"api_secret"`
		AutoSync  bool   `json:"auto_sync"`
		Schedule  string `json:"sync_schedule"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	creds := exchange.Credentials{APIKey: payload.APIKey, APISecret: payload.APISecret}
	conn, err := h.app.Exchanges.Create(r.Context(), middleware.GetUserID(r.Context()), payload.Exchange, payload.Label, creds, payload.AutoSync, payload.Schedule)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, conn)
}

func (h *Handler) listConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := h.app.Exchanges.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, conns)
}

func (h *Handler) getConnection(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.ownedConnection(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (h *Handler) updateConnection(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.ownedConnection(w, r)
	if !ok {
		return
	}

	var payload struct {
		Label     *string `json:"label"`
		AutoSync  *bool   `json:"auto_sync"`
		Schedule  *string `json:"sync_schedule"`
		APIKey    *string `json:"api_key"`
		APISecret *string `json:"api_secret"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var creds *exchange.Credentials
	if payload.APIKey != nil || payload.APISecret != nil {
		if payload.APIKey == nil || payload.APISecret == nil {
			writeError(w, http.StatusBadRequest, errors.New("api_key and api_secret must be rotated together"))
			return
		}
		creds = &exchange.Credentials{APIKey: *payload.APIKey, APISecret: *payload.APISecret}
	}

	updated, err := h.app.Exchanges.Update(r.Context(), conn.ID, payload.Label, payload.AutoSync, payload.Schedule, creds)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteConnection(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.ownedConnection(w, r)
	if !ok {
		return
	}
	if err := h.app.Exchanges.Delete(r.Context(), conn.ID); err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) startSync(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.ownedConnection(w, r)
	if !ok {
		return
	}

	kind := syncdomain.KindHistorical
	var payload struct {
		Kind string `json:"kind"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if payload.Kind != "" {
			kind = syncdomain.Kind(payload.Kind)
		}
	}

	session, err := h.app.Sync.StartSession(r.Context(), conn.AccountID, conn.ID, kind)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, session)
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.ownedConnection(w, r)
	if !ok {
		return
	}
	sessions, err := h.app.Sync.List(r.Context(), conn.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *Handler) ownedConnection(w http.ResponseWriter, r *http.Request) (exchange.Connection, bool) {
	conn, err := h.app.Exchanges.Get(r.Context(), chi.URLParam(r, "connectionID"))
	if err != nil {
		writeError(w, errStatus(err), err)
		return exchange.Connection{}, false
	}
	if conn.AccountID != middleware.GetUserID(r.Context()) {
		writeError(w, http.StatusNotFound, storage.ErrNotFound)
		return exchange.Connection{}, false
	}
	return conn, true
}

// =============================================================================
// affiliates
// =============================================================================

func (h *Handler) enrollAffiliate(w http.ResponseWriter, r *http.Request) {
	aff, err := h.app.Affiliates.Enroll(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, aff)
}

func (h *Handler) myAffiliate(w http.ResponseWriter, r *http.Request) {
	aff, err := h.app.Affiliates.GetByAccount(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	available, err := h.app.Affiliates.Available(r.Context(), aff.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"affiliate": aff,
		"available": available,
	})
}

func (h *Handler) listMyPayouts(w http.ResponseWriter, r *http.Request) {
	aff, err := h.app.Affiliates.GetByAccount(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	payouts, err := h.app.Affiliates.ListPayouts(r.Context(), aff.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, payouts)
}

func (h *Handler) requestPayout(w http.ResponseWriter, r *http.Request) {
	aff, err := h.app.Affiliates.GetByAccount(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}

	var payload struct {
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	payout, err := h.app.Affiliates.RequestPayout(r.Context(), aff.ID, payload.Amount, payload.Currency)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, payout)
}

// =============================================================================
// billing
// =============================================================================

func (h *Handler) billingCheckout(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Plan string `json:"plan"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	url, err := h.app.Billing.StartCheckout(r.Context(), middleware.GetUserID(r.Context()), billing.Plan(payload.Plan))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *Handler) billingPortal(w http.ResponseWriter, r *http.Request) {
	url, err := h.app.Billing.OpenPortal(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *Handler) billingSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.app.Billing.GetSubscription(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) billingWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := httputil.ReadAllStrict(r.Body, 1<<20)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer r.Body.Close()

	if err := h.app.Billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// =============================================================================
// price feeds
// =============================================================================

func (h *Handler) listFeeds(w http.ResponseWriter, r *http.Request) {
	feeds, err := h.app.PriceFeeds.ListFeeds(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, feeds)
}

func (h *Handler) getFeed(w http.ResponseWriter, r *http.Request) {
	feed, err := h.app.PriceFeeds.GetFeed(r.Context(), chi.URLParam(r, "feedID"))
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

func (h *Handler) feedQuotes(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	quotes, err := h.app.PriceFeeds.History(r.Context(), chi.URLParam(r, "feedID"), limit)
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}

func (h *Handler) createFeed(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Symbol    string `json:"symbol"`
		Quote     string `json:"quote"`
		SourceURL string `json:"source_url"`
		PricePath string `json:"price_path"`
		Interval  string `json:"interval"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	feed, err := h.app.PriceFeeds.CreateFeed(r.Context(), payload.Symbol, payload.Quote, payload.SourceURL, payload.PricePath, payload.Interval)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, feed)
}

func (h *Handler) updateFeed(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SourceURL *string `json:"source_url"`
		PricePath *string `json:"price_path"`
		Interval  *string `json:"interval"`
		Active    *bool   `json:"active"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	feedID := chi.URLParam(r, "feedID")
	feed, err := h.app.PriceFeeds.UpdateFeed(r.Context(), feedID, payload.SourceURL, payload.PricePath, payload.Interval)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.Active != nil {
		feed, err = h.app.PriceFeeds.SetActive(r.Context(), feedID, *payload.Active)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, feed)
}

func (h *Handler) spotPrice(w http.ResponseWriter, r *http.Request) {
	quote, err := h.app.PriceFeeds.Spot(r.Context(), r.URL.Query().Get("pair"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// =============================================================================
// wallets
// =============================================================================

func (h *Handler) createWallet(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Chain   string `json:"chain"`
		Address string `json:"address"`
		Label   string `json:"label"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	wlt, err := h.app.Wallets.Create(r.Context(), middleware.GetUserID(r.Context()), payload.Chain, payload.Address, payload.Label)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, wlt)
}

func (h *Handler) listWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := h.app.Wallets.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, wallets)
}

func (h *Handler) getWallet(w http.ResponseWriter, r *http.Request) {
	wlt, err := h.app.Wallets.Get(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "walletID"))
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, wlt)
}

func (h *Handler) updateWallet(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Label string `json:"label"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	wlt, err := h.app.Wallets.UpdateLabel(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "walletID"), payload.Label)
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, wlt)
}

func (h *Handler) deleteWallet(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Wallets.Delete(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "walletID")); err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) walletBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.app.Wallets.Balance(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "walletID"))
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (h *Handler) walletTransactions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	txs, err := h.app.Wallets.Transactions(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "walletID"), limit)
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// =============================================================================
// admin
// =============================================================================

func (h *Handler) adminListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.app.Accounts.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *Handler) adminSetTier(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Tier string `json:"tier"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	acct, err := h.app.Accounts.SetTier(r.Context(), chi.URLParam(r, "accountID"), account.Tier(payload.Tier))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (h *Handler) adminSetRole(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	acct, err := h.app.Accounts.SetRole(r.Context(), chi.URLParam(r, "accountID"), account.Role(payload.Role))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (h *Handler) adminListAffiliates(w http.ResponseWriter, r *http.Request) {
	affiliates, err := h.app.Affiliates.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, affiliates)
}

func (h *Handler) adminSetCommissionRate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Rate decimal.Decimal `json:"rate"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	aff, err := h.app.Affiliates.SetCommissionRate(r.Context(), chi.URLParam(r, "affiliateID"), payload.Rate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, aff)
}

func (h *Handler) adminSettlePayout(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Approved bool `json:"approved"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	payout, err := h.app.Affiliates.SettlePayout(r.Context(), chi.URLParam(r, "payoutID"), payload.Approved)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, payout)
}

func (h *Handler) adminAudit(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, h.audit.listLimit(limit))
}

// auditAdmin records admin requests in the audit trail.
func (h *Handler) auditAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &auditRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.audit.add(auditEntry{
			Time:       time.Now().UTC(),
			User:       middleware.GetUserID(r.Context()),
			Role:       middleware.GetRole(r.Context()),
			Path:       r.URL.Path,
			Method:     r.Method,
			Status:     rec.status,
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
		})
	})
}

type auditRecorder struct {
	http.ResponseWriter
	status int
}

func (r *auditRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// =============================================================================
// realtime
// =============================================================================

func (h *Handler) ws(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, errors.New("authentication required"))
		return
	}
	h.app.Realtime.ServeWS(w, r, accountID)
}

// =============================================================================
// helpers
// =============================================================================

// tradeFilter builds a trade listing filter scoped to the caller's account.
func tradeFilter(r *http.Request) (storage.TradeFilter, error) {
	from, to, err := timeRange(r)
	if err != nil {
		return storage.TradeFilter{}, err
	}
	return storage.TradeFilter{
		AccountID:    middleware.GetUserID(r.Context()),
		ConnectionID: r.URL.Query().Get("connection_id"),
		Symbol:       r.URL.Query().Get("symbol"),
		From:         from,
		To:           to,
	}, nil
}

func timeRange(r *http.Request) (time.Time, time.Time, error) {
	from, err := parseTime(r.URL.Query().Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseTime(r.URL.Query().Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

// parseTime accepts RFC 3339 timestamps or plain dates.
func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, errors.New("time must be RFC 3339 or YYYY-MM-DD")
	}
	return t, nil
}

func errStatus(err error) int {
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
