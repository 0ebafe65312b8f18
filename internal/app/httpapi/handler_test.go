package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	app "github.com/tradevault/platform/internal/app"
	"github.com/tradevault/platform/internal/app/domain/account"
	"github.com/tradevault/platform/internal/app/services/analytics"
	"github.com/tradevault/platform/internal/app/storage/memory"
	"github.com/tradevault/platform/internal/config"
	"github.com/tradevault/platform/internal/middleware"
)

const testJWTSecret = "handler-test-secret"

type testAPI struct {
	server *httptest.Server
	mem    *memory.Store
	app    *app.Application
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	mem := memory.New()
	cfg := config.Config{
		JWTSecret:     testJWTSecret,
		TokenTTL:      time.Hour,
		CredentialKey: "0123456789abcdef0123456789abcdef",
		Payments: config.PaymentsConfig{
			ProPrice:   "price_pro",
			ElitePrice: "price_elite",
		},
	}
	application, err := app.New(cfg, app.Stores{
		Accounts:    mem,
		Trades:      mem,
		Notes:       mem,
		Connections: mem,
		Sync:        mem,
		Affiliates:  mem,
		Billing:     mem,
		PriceFeeds:  mem,
		Wallets:     mem,
	}, nil)
	if err != nil {
		t.Fatalf("build application: %v", err)
	}

	handler := New(application, nil)
	auth := middleware.NewAuthMiddleware([]byte(testJWTSecret), nil, []string{
		"/auth/register", "/auth/login", "/billing/webhook", "/healthz", "/metrics",
	})
	server := httptest.NewServer(auth.Handler(handler.Routes()))
	t.Cleanup(server.Close)

	return &testAPI{server: server, mem: mem, app: application}
}

func (a *testAPI) do(t *testing.T, method, path, token string, payload interface{}) *http.Response {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewBuffer(data)
	} else {
		body = &bytes.Buffer{}
	}

	req, err := http.NewRequest(method, a.server.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func (a *testAPI) register(t *testing.T, email string) (account.Account, string) {
	t.Helper()

	resp := a.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":        email,
		"password":     "correct-horse-battery",
		"display_name": "Test Trader",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: status %d", resp.StatusCode)
	}

	var out struct {
		Account account.Account `json:"account"`
		Token   string          `json:"token"`
	}
	decodeBody(t, resp, &out)
	if out.Token == "" {
		t.Fatal("register returned empty token")
	}
	return out.Account, out.Token
}

func tradeBody(symbol, side, pnl string) map[string]interface{} {
	return map[string]interface{}{
		"symbol":      symbol,
		"side":        side,
		"quantity":    "1.5",
		"entry_price": "100",
		"exit_price":  "120",
		"pnl":         pnl,
		"opened_at":   time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
		"closed_at":   time.Date(2026, 2, 1, 15, 0, 0, 0, time.UTC),
	}
}

func TestAuthFlow(t *testing.T) {
	api := newTestAPI(t)

	acct, token := api.register(t, "alice@example.com")
	if acct.Tier != account.TierFree {
		t.Errorf("expected free tier, got %s", acct.Tier)
	}

	resp := api.do(t, http.MethodGet, "/auth/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: status %d", resp.StatusCode)
	}
	var me account.Account
	decodeBody(t, resp, &me)
	if me.Email != "alice@example.com" {
		t.Errorf("unexpected email %s", me.Email)
	}

	resp = api.do(t, http.MethodGet, "/auth/me", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp = api.do(t, http.MethodPost, "/auth/password", token, map[string]string{
		"current_password": "correct-horse-battery",
		"new_password":     "even-better-passphrase",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("change password: status %d", resp.StatusCode)
	}

	resp = api.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "even-better-passphrase",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login with new password: status %d", resp.StatusCode)
	}
}

func TestTradeLifecycleAndOwnership(t *testing.T) {
	api := newTestAPI(t)
	_, alice := api.register(t, "alice@example.com")
	_, bob := api.register(t, "bob@example.com")

	resp := api.do(t, http.MethodPost, "/trades", alice, tradeBody("btc/usdt", "long", "30"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create trade: status %d", resp.StatusCode)
	}
	var created struct {
		ID     string `json:"id"`
		Symbol string `json:"symbol"`
	}
	decodeBody(t, resp, &created)
	if created.Symbol != "BTC/USDT" {
		t.Errorf("expected symbol uppercased, got %s", created.Symbol)
	}

	resp = api.do(t, http.MethodGet, "/trades/"+created.ID, bob, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected foreign trade lookup to 404, got %d", resp.StatusCode)
	}

	resp = api.do(t, http.MethodPut, "/trades/"+created.ID, alice, map[string]interface{}{
		"pnl": "45",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update trade: status %d", resp.StatusCode)
	}
	var updated struct {
		PnL string `json:"pnl"`
	}
	decodeBody(t, resp, &updated)
	if updated.PnL != "45" {
		t.Errorf("expected pnl 45, got %s", updated.PnL)
	}

	resp = api.do(t, http.MethodDelete, "/trades/"+created.ID, alice, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete trade: status %d", resp.StatusCode)
	}

	resp = api.do(t, http.MethodGet, "/trades", alice, nil)
	var remaining []json.RawMessage
	decodeBody(t, resp, &remaining)
	if len(remaining) != 0 {
		t.Fatalf("expected no trades left, got %d", len(remaining))
	}
}

func TestAnalyticsSummary(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.register(t, "alice@example.com")

	for _, body := range []map[string]interface{}{
		tradeBody("BTC/USDT", "long", "100"),
		tradeBody("ETH/USDT", "short", "-40"),
	} {
		resp := api.do(t, http.MethodPost, "/trades", token, body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create trade: status %d", resp.StatusCode)
		}
	}

	resp := api.do(t, http.MethodGet, "/analytics/summary", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summary: status %d", resp.StatusCode)
	}
	var summary analytics.Summary
	decodeBody(t, resp, &summary)
	if summary.TradeCount != 2 {
		t.Errorf("expected 2 trades, got %d", summary.TradeCount)
	}
	if summary.WinCount != 1 || summary.LossCount != 1 {
		t.Errorf("unexpected win/loss split: %d/%d", summary.WinCount, summary.LossCount)
	}
	if summary.TotalPnL.String() != "60" {
		t.Errorf("expected total pnl 60, got %s", summary.TotalPnL)
	}
}

func TestBillingWebhookUpgradesTier(t *testing.T) {
	api := newTestAPI(t)
	acct, token := api.register(t, "alice@example.com")

	event := fmt.Sprintf(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"client_reference_id": %q,
			"customer": "cus_1",
			"subscription": "sub_1",
			"metadata": {"plan": "pro"}
		}}
	}`, acct.ID)

	req, err := http.NewRequest(http.MethodPost, api.server.URL+"/billing/webhook", bytes.NewBufferString(event))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("webhook: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("webhook: status %d", resp.StatusCode)
	}

	resp = api.do(t, http.MethodGet, "/auth/me", token, nil)
	var me account.Account
	decodeBody(t, resp, &me)
	if me.Tier != account.TierPro {
		t.Errorf("expected pro tier after checkout, got %s", me.Tier)
	}

	resp = api.do(t, http.MethodGet, "/billing/subscription", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("subscription: status %d", resp.StatusCode)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	api := newTestAPI(t)
	acct, token := api.register(t, "alice@example.com")

	resp := api.do(t, http.MethodGet, "/admin/accounts", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for plain user, got %d", resp.StatusCode)
	}

	// Promote and log in again so the token carries the admin role.
	stored, err := api.mem.GetAccount(context.Background(), acct.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	stored.Role = account.RoleAdmin
	if _, err := api.mem.UpdateAccount(context.Background(), stored); err != nil {
		t.Fatalf("update account: %v", err)
	}
	resp = api.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "correct-horse-battery",
	})
	var login struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &login)

	resp = api.do(t, http.MethodGet, "/admin/accounts", login.Token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin accounts: status %d", resp.StatusCode)
	}

	resp = api.do(t, http.MethodGet, "/admin/audit", login.Token, nil)
	var entries []json.RawMessage
	decodeBody(t, resp, &entries)
	if len(entries) == 0 {
		t.Fatal("expected audit trail entries for admin requests")
	}
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(t, http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: status %d", resp.StatusCode)
	}
	var health healthResponse
	decodeBody(t, resp, &health)
	if health.Status != "ok" {
		t.Errorf("unexpected status %s", health.Status)
	}
}

func TestUnknownResourceReturns404(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.register(t, "alice@example.com")

	for _, path := range []string{
		"/trades/does-not-exist",
		"/journal/does-not-exist",
		"/connections/does-not-exist",
		"/wallets/does-not-exist",
		"/feeds/does-not-exist",
	} {
		resp := api.do(t, http.MethodGet, path, token, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s: status %d, want 404", path, resp.StatusCode)
		}
	}
}
