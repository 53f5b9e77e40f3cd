package cmp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/sendrec/videoconsent/internal/httputil"
)

const (
	EventConsentChanged = "consent.changed"
	SignatureHeader     = "X-Webhook-Signature"

	maxEventBodyBytes = 64 << 10
)

// Event is the body of a platform webhook call.
type Event struct {
	Name     string          `json:"event"`
	Consents map[string]bool `json:"consents"`
}

// SignPayload computes HMAC-SHA256 of the payload using the secret.
func SignPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func VerifySignature(secret string, payload []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(SignPayload(secret, payload)), []byte(signature))
}

// Applier receives consent-changed events. consent.PlatformStore is one.
type Applier interface {
	Apply(consents map[string]bool)
}

// EventsHandler verifies and applies platform webhook calls. Unknown event
// names are acknowledged and ignored.
func EventsHandler(secret string, store Applier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBodyBytes+1))
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "could not read body")
			return
		}
		if len(body) > maxEventBodyBytes {
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, "event too large")
			return
		}
		if !VerifySignature(secret, body, r.Header.Get(SignatureHeader)) {
			httputil.WriteError(w, http.StatusUnauthorized, "invalid signature")
			return
		}

		var event Event
		if err := json.Unmarshal(body, &event); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid event body")
			return
		}
		if event.Name != EventConsentChanged {
			slog.Info("cmp: ignoring event", "event", event.Name)
			w.WriteHeader(http.StatusAccepted)
			return
		}

		store.Apply(event.Consents)
		slog.Info("cmp: consents applied", "services", len(event.Consents))
		w.WriteHeader(http.StatusNoContent)
	}
}
