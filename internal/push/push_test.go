package push

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/dukerupert/tenantry/internal/database"
	"github.com/dukerupert/tenantry/internal/model"
	"github.com/dukerupert/tenantry/internal/store"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	// Public key should be base64url-encoded, 65 bytes uncompressed P-256 point
	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	// Private key should be base64url-encoded, 32 bytes P-256 scalar
	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) != 32 {
		t.Errorf("private key length = %d, want 32", len(privBytes))
	}

	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

// browserKeys returns subscription keys shaped like the ones a browser sends.
func browserKeys(t *testing.T) (p256dh, auth string) {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate client key: %v", err)
	}
	secret := make([]byte, 16)
	rand.Read(secret)
	return base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()), base64.RawURLEncoding.EncodeToString(secret)
}

func setupPushService(t *testing.T) (*Service, *store.PushStore, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	u, err := store.NewUserStore(db).Create("alice@example.com", "Alice", model.RoleTenant)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate keys: %v", err)
	}
	subs := store.NewPushStore(db)
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(pub, priv, "mailto:ops@example.com", subs, WithLogger(quiet)), subs, u.ID
}

func TestSendToUser(t *testing.T) {
	svc, subs, uid := setupPushService(t)

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Authorization") == "" {
			t.Error("missing VAPID authorization header")
		}
		if got := r.Header.Get("Urgency"); got != "high" {
			t.Errorf("Urgency = %q, want high", got)
		}
		if got := r.Header.Get("Topic"); got != "swap_requested" {
			t.Errorf("Topic = %q, want swap_requested", got)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	p256dh, auth := browserKeys(t)
	if _, err := subs.Save(model.PushSubscription{UserID: uid, Endpoint: server.URL + "/a", P256dhKey: p256dh, AuthKey: auth, DeviceName: "Phone"}); err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	n, err := svc.SendToUser(uid, Payload{Title: "Swap request", Body: "Alice wants to swap", URL: "/swaps", Tag: "swap_requested", Urgent: true})
	if err != nil {
		t.Fatalf("send to user: %v", err)
	}
	if n != 1 || hits.Load() != 1 {
		t.Errorf("sent = %d, hits = %d, want 1", n, hits.Load())
	}
}

func TestSendToUserRemovesExpired(t *testing.T) {
	svc, subs, uid := setupPushService(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	p256dh, auth := browserKeys(t)
	subs.Save(model.PushSubscription{UserID: uid, Endpoint: server.URL + "/gone", P256dhKey: p256dh, AuthKey: auth, DeviceName: "Old laptop"})

	n, err := svc.SendToUser(uid, Payload{Title: "t", Body: "b"})
	if err != nil {
		t.Fatalf("send to user: %v", err)
	}
	if n != 0 {
		t.Errorf("sent = %d, want 0", n)
	}
	left, _ := subs.ListByUser(uid)
	if len(left) != 0 {
		t.Errorf("subscriptions = %d, want expired one removed", len(left))
	}
}

func TestSendToUserUnconfigured(t *testing.T) {
	svc := NewService("", "", "", nil)
	if svc.Configured() {
		t.Fatal("expected Configured() = false")
	}
	n, err := svc.SendToUser(1, Payload{})
	if err != nil || n != 0 {
		t.Errorf("send = %d, %v", n, err)
	}
}
