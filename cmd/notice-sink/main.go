// Command notice-sink is a local webhook receiver for outbound notices. It
// checks signatures, decodes the CloudEvent envelope and logs each notice.
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type sink struct {
	secret   string
	received atomic.Int64
	rejected atomic.Int64
	logger   *slog.Logger
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	port := "9090"
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}
	s := &sink{secret: os.Getenv("NOTIFY_WEBHOOK_SECRET"), logger: logger}

	logger.Info("notice sink starting",
		"port", port,
		"endpoints", []string{
			"POST /notices/success -> 200",
			"POST /notices/slow -> 200 after 3s",
			"POST /notices/fail -> 500",
			"GET /stats",
		},
	)
	if err := http.ListenAndServe(":"+port, s.routes()); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func (s *sink) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/notices/success", s.receive(0, http.StatusOK))
	r.Post("/notices/slow", s.receive(3*time.Second, http.StatusOK))
	r.Post("/notices/fail", s.receive(0, http.StatusInternalServerError))
	r.Get("/stats", s.stats)
	return r
}

// receive verifies and logs one notice, then answers with status after delay.
func (s *sink) receive(delay time.Duration, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, "reading body", http.StatusBadRequest)
			return
		}

		if s.secret != "" && !validSignature(body, s.secret, r.Header.Get("X-Webhook-Signature")) {
			s.rejected.Add(1)
			s.logger.Warn("rejected notice with bad signature", "id", r.Header.Get("X-Webhook-ID"))
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		event, err := cloudevents.NewEventFromHTTPRequest(r)
		if err != nil {
			s.rejected.Add(1)
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		var notice struct {
			To      string `json:"to"`
			Subject string `json:"subject"`
			Body    string `json:"body"`
		}
		if err := event.DataAs(&notice); err != nil {
			s.rejected.Add(1)
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		time.Sleep(delay)
		count := s.received.Add(1)
		s.logger.Info("notice received",
			"n", count,
			"path", r.URL.Path,
			"status", status,
			"id", event.ID(),
			"type", event.Type(),
			"to", notice.To,
			"subject", notice.Subject,
			"body", notice.Body,
		)

		if status >= 400 {
			writeJSON(w, status, map[string]string{"error": "internal server error"})
			return
		}
		writeJSON(w, status, map[string]string{"status": "received"})
	}
}

func (s *sink) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int64{
		"received": s.received.Load(),
		"rejected": s.rejected.Load(),
	})
}

func validSignature(body []byte, secret, got string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(got))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
