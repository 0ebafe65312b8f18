package exchanges

import (
	"bytes"
	"context"
	"testing"

	"github.com/tradevault/platform/internal/app/domain/exchange"
	"github.com/tradevault/platform/internal/app/storage/memory"
)

func TestEncryptRoundTrip(t *testing.T) {
	cipher, err := encrypt("unit-test-secret", []byte("api-key-value"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(cipher, []byte("api-key-value")) {
		t.Fatal("ciphertext leaks plaintext")
	}

	plain, err := decrypt("unit-test-secret", cipher)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(plain) != "api-key-value" {
		t.Fatalf("round trip mismatch: %q", plain)
	}

	if _, err := decrypt("wrong-secret", cipher); err == nil {
		t.Fatal("expected wrong key to fail")
	}
}

func TestCreateMasksCredentials(t *testing.T) {
	svc := New(memory.New(), "unit-test-secret", nil)
	ctx := context.Background()

	conn, err := svc.Create(ctx, "acct-1", "Binance", "main", exchange.Credentials{
		APIKey:    "AKIAEXAMPLE1234",
		APISecret: "s3cr3t",
	}, true, "0 * * * *")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if conn.KeySuffix != "1234" {
		t.Fatalf("expected suffix 1234, got %s", conn.KeySuffix)
	}
	if bytes.Contains(conn.APIKeyCipher, []byte("AKIAEXAMPLE1234")) {
		t.Fatal("api key stored in the clear")
	}
	if conn.Status != exchange.StatusActive {
		t.Fatalf("expected active status, got %s", conn.Status)
	}

	creds, err := svc.Credentials(ctx, conn.ID)
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}
	if creds.APIKey != "AKIAEXAMPLE1234" || creds.APISecret != "s3cr3t" {
		t.Fatalf("unexpected decrypted credentials: %+v", creds)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := New(memory.New(), "unit-test-secret", nil)
	ctx := context.Background()
	creds := exchange.Credentials{APIKey: "k", APISecret: "s"}

	if _, err := svc.Create(ctx, "acct-1", "mtgox", "", creds, false, ""); err == nil {
		t.Fatal("expected unsupported exchange to be rejected")
	}
	if _, err := svc.Create(ctx, "acct-1", "binance", "", exchange.Credentials{APIKey: "k"}, false, ""); err == nil {
		t.Fatal("expected missing secret to be rejected")
	}
	if _, err := svc.Create(ctx, "acct-1", "binance", "", creds, true, "not a schedule"); err == nil {
		t.Fatal("expected invalid schedule to be rejected")
	}
}

func TestUpdateCredentialsClearsError(t *testing.T) {
	svc := New(memory.New(), "unit-test-secret", nil)
	ctx := context.Background()

	conn, err := svc.Create(ctx, "acct-1", "kraken", "", exchange.Credentials{APIKey: "oldkey", APISecret: "oldsecret"}, false, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.SetStatus(ctx, conn.ID, exchange.StatusError, "401 from exchange"); err != nil {
		t.Fatalf("set status: %v", err)
	}

	updated, err := svc.Update(ctx, conn.ID, nil, nil, nil, &exchange.Credentials{APIKey: "newkey99", APISecret: "newsecret"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != exchange.StatusActive {
		t.Fatalf("expected error state to clear, got %s", updated.Status)
	}
	if updated.KeySuffix != "ey99" {
		t.Fatalf("expected new suffix, got %s", updated.KeySuffix)
	}
}
