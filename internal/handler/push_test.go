package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/tenantry/internal/model"
	"github.com/dukerupert/tenantry/internal/push"
	"github.com/dukerupert/tenantry/internal/store"
)

func TestPushSubscribe(t *testing.T) {
	db := setupTestDB(t)
	users := store.NewUserStore(db)
	alice, _ := users.Create("alice@example.com", "Alice", model.RoleTenant)
	bob, _ := users.Create("bob@example.com", "Bob", model.RoleTenant)
	subs := store.NewPushStore(db)
	h := NewPushHandler(subs, push.NewService("", "", "", subs), discard)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"browser shape", `{"endpoint":"https://push.example.com/a","expirationTime":null,"keys":{"p256dh":"pk","auth":"ak"},"device_name":"Phone"}`, http.StatusCreated},
		{"plain http", `{"endpoint":"http://push.example.com/a","keys":{"p256dh":"pk","auth":"ak"}}`, http.StatusBadRequest},
		{"missing keys", `{"endpoint":"https://push.example.com/b","keys":{"p256dh":"pk"}}`, http.StatusBadRequest},
		{"flat keys", `{"endpoint":"https://push.example.com/c","p256dh":"pk","auth":"ak"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Subscribe(rec, as(httptest.NewRequest("POST", "/api/push/subscriptions", bytes.NewBufferString(tt.body)), alice.ID, model.RoleTenant))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	list, _ := subs.ListByUser(alice.ID)
	if len(list) != 1 || list[0].DeviceName != "Phone" {
		t.Fatalf("subscriptions = %+v, want one named Phone", list)
	}

	del := func(userID int64) int {
		req := httptest.NewRequest("DELETE", "/api/push/subscriptions/x", nil)
		req.SetPathValue("id", fmt.Sprint(list[0].ID))
		rec := httptest.NewRecorder()
		h.Unsubscribe(rec, as(req, userID, model.RoleTenant))
		return rec.Code
	}
	if got := del(bob.ID); got != http.StatusNotFound {
		t.Errorf("delete by another user: status = %d, want 404", got)
	}
	if got := del(alice.ID); got != http.StatusNoContent {
		t.Errorf("delete by owner: status = %d, want 204", got)
	}
}

func TestPushVAPIDKeyAndTest(t *testing.T) {
	db := setupTestDB(t)
	subs := store.NewPushStore(db)
	h := NewPushHandler(subs, push.NewService("", "", "", subs), discard)

	rec := httptest.NewRecorder()
	h.GetVAPIDKey(rec, httptest.NewRequest("GET", "/api/push/vapid-key", nil))
	var key struct {
		PublicKey string `json:"public_key"`
		Enabled   bool   `json:"enabled"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &key); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if key.Enabled || key.PublicKey != "" {
		t.Errorf("vapid key = %+v, want disabled", key)
	}

	rec = httptest.NewRecorder()
	h.TestNotification(rec, as(httptest.NewRequest("POST", "/api/push/test", nil), 1, model.RoleTenant))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("test push: status = %d, want 503", rec.Code)
	}
}
