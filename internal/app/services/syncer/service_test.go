package syncer

import (
	"context"
	"errors"
	"testing"

	"github.com/tradevault/platform/internal/app/domain/exchange"
	syncdomain "github.com/tradevault/platform/internal/app/domain/sync"
	"github.com/tradevault/platform/internal/app/storage/memory"
)

func seedConnection(t *testing.T, store *memory.Store, status exchange.Status) exchange.Connection {
	t.Helper()
	conn, err := store.CreateConnection(context.Background(), exchange.Connection{
		AccountID:       "acct-1",
		Exchange:        "binance",
		APIKeyCipher:    []byte{1},
		APISecretCipher: []byte{2},
		Status:          status,
	})
	if err != nil {
		t.Fatalf("seed connection: %v", err)
	}
	return conn
}

func TestStartSession(t *testing.T) {
	store := memory.New()
	conn := seedConnection(t, store, exchange.StatusActive)
	svc := New(store, store, nil)
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, "acct-1", conn.ID, syncdomain.KindHistorical)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if sess.Status != syncdomain.StatusPending {
		t.Fatalf("expected pending, got %s", sess.Status)
	}

	// Only one live session per connection.
	if _, err := svc.StartSession(ctx, "acct-1", conn.ID, syncdomain.KindHistorical); err == nil {
		t.Fatal("expected second session to be rejected")
	}

	if _, err := svc.StartSession(ctx, "someone-else", conn.ID, syncdomain.KindHistorical); err == nil {
		t.Fatal("expected foreign account to be rejected")
	}
}

func TestStartSessionDisabledConnection(t *testing.T) {
	store := memory.New()
	conn := seedConnection(t, store, exchange.StatusDisabled)
	svc := New(store, store, nil)

	if _, err := svc.StartSession(context.Background(), "acct-1", conn.ID, syncdomain.KindHistorical); err == nil {
		t.Fatal("expected disabled connection to be rejected")
	}
}

func TestSessionTransitionsAreMonotonic(t *testing.T) {
	store := memory.New()
	conn := seedConnection(t, store, exchange.StatusActive)
	svc := New(store, store, nil)
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, "acct-1", conn.ID, syncdomain.KindHistorical)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	// Completing straight from pending is allowed (stream worker shutdown),
	// but running from a terminal state is not.
	running, err := svc.MarkRunning(ctx, sess.ID)
	if err != nil {
		t.Fatalf("mark running: %v", err)
	}
	if running.StartedAt.IsZero() {
		t.Fatal("expected started_at to be stamped")
	}

	if _, err := svc.MarkRunning(ctx, sess.ID); err == nil {
		t.Fatal("expected double-claim to fail")
	}

	done, err := svc.Complete(ctx, sess.ID, 7)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.TradesImported != 7 || done.FinishedAt.IsZero() {
		t.Fatalf("unexpected completed session: %+v", done)
	}

	if _, err := svc.Fail(ctx, sess.ID, errors.New("late failure")); err == nil {
		t.Fatal("expected terminal session to reject failure")
	}
}
