package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Abdul07in/supplychainx/internal/events"
)

func testNotice() Notice {
	return Notice{
		ID:        "n-1",
		Kind:      events.StockLow,
		To:        "procurement@company.com",
		Subject:   "Low Stock Alert",
		Body:      `Product "Widget" is running low on stock. Current quantity: 15`,
		CreatedAt: emitted,
	}
}

func TestWebhookSender_PostsSignedCloudEvent(t *testing.T) {
	var (
		gotBody   []byte
		gotHeader http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeader = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, "shh")
	if err := s.Send(context.Background(), testNotice()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if ct := gotHeader.Get("Content-Type"); ct != "application/cloudevents+json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if ev := gotHeader.Get("X-Webhook-Event"); ev != string(events.StockLow) {
		t.Errorf("X-Webhook-Event = %q", ev)
	}
	if id := gotHeader.Get("X-Webhook-ID"); id != "n-1" {
		t.Errorf("X-Webhook-ID = %q", id)
	}

	mac := hmac.New(sha256.New, []byte("shh"))
	mac.Write(gotBody)
	if sig := gotHeader.Get("X-Webhook-Signature"); sig != hex.EncodeToString(mac.Sum(nil)) {
		t.Errorf("signature does not match body")
	}

	var envelope struct {
		SpecVersion string `json:"specversion"`
		ID          string `json:"id"`
		Type        string `json:"type"`
		Source      string `json:"source"`
		Subject     string `json:"subject"`
		Data        Notice `json:"data"`
	}
	if err := json.Unmarshal(gotBody, &envelope); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if envelope.SpecVersion != "1.0" {
		t.Errorf("specversion = %q", envelope.SpecVersion)
	}
	if envelope.Type != "com.supplychainx.notice.stock.low" {
		t.Errorf("type = %q", envelope.Type)
	}
	if envelope.Source != EventSource || envelope.ID != "n-1" {
		t.Errorf("source/id = %q/%q", envelope.Source, envelope.ID)
	}
	if envelope.Subject != "procurement@company.com" {
		t.Errorf("subject = %q", envelope.Subject)
	}
	if envelope.Data.Body != testNotice().Body {
		t.Errorf("data.body = %q", envelope.Data.Body)
	}
}

func TestWebhookSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("down for maintenance"))
	}))
	defer srv.Close()

	err := NewWebhookSender(srv.URL, "").Send(context.Background(), testNotice())

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d", statusErr.StatusCode)
	}
	if statusErr.Body != "down for maintenance" {
		t.Errorf("Body = %q", statusErr.Body)
	}
}

func TestWebhookSender_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if err := NewWebhookSender(url, "").Send(context.Background(), testNotice()); err == nil {
		t.Error("expected an error for a closed endpoint")
	}
}

func TestComputeHMAC(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		secret  string
	}{
		{name: "basic payload", payload: []byte(`{"kind":"stock.low"}`), secret: "my-secret-key"},
		{name: "empty payload", payload: []byte(`{}`), secret: "secret"},
		{name: "empty secret", payload: []byte(`{"test":true}`), secret: ""},
		{name: "unicode payload", payload: []byte(`{"name":"café","price":"€10"}`), secret: "unicode-key-日本語"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := computeHMAC(tt.payload, tt.secret)

			decoded, err := hex.DecodeString(sig)
			if err != nil {
				t.Fatalf("signature is not valid hex: %v", err)
			}
			if len(decoded) != 32 {
				t.Fatalf("expected 32 bytes, got %d", len(decoded))
			}
			if computeHMAC(tt.payload, tt.secret+"x") == sig {
				t.Error("different secrets should produce different signatures")
			}
		})
	}
}
