package cmp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordingApplier struct {
	applied []map[string]bool
}

func (a *recordingApplier) Apply(consents map[string]bool) {
	a.applied = append(a.applied, consents)
}

func TestSignPayload(t *testing.T) {
	secret := "test-secret"
	payload := []byte(`{"event":"consent.changed","consents":{}}`)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if got := SignPayload(secret, payload); got != expected {
		t.Errorf("expected signature %s, got %s", expected, got)
	}
	if SignPayload("other", payload) == expected {
		t.Error("different secrets should produce different signatures")
	}
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{}`)
	sig := SignPayload("s", payload)

	if !VerifySignature("s", payload, sig) {
		t.Error("expected valid signature")
	}
	if VerifySignature("s", []byte(`{"x":1}`), sig) {
		t.Error("expected tampered payload to fail")
	}
	if VerifySignature("", payload, SignPayload("", payload)) {
		t.Error("expected empty secret to reject everything")
	}
	if VerifySignature("s", payload, "") {
		t.Error("expected missing signature to fail")
	}
}

func postEvent(handler http.Handler, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/cmp/events", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestEventsHandler(t *testing.T) {
	const secret = "webhook-secret"

	t.Run("applies consent changes", func(t *testing.T) {
		applier := &recordingApplier{}
		body := `{"event":"consent.changed","consents":{"YouTube Video":true,"Vimeo":false}}`

		rec := postEvent(EventsHandler(secret, applier), body, SignPayload(secret, []byte(body)))

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(applier.applied) != 1 || !applier.applied[0]["YouTube Video"] || applier.applied[0]["Vimeo"] {
			t.Errorf("unexpected applied consents %v", applier.applied)
		}
	})

	t.Run("rejects bad signature", func(t *testing.T) {
		applier := &recordingApplier{}
		body := `{"event":"consent.changed","consents":{"Vimeo":true}}`

		rec := postEvent(EventsHandler(secret, applier), body, SignPayload("wrong", []byte(body)))

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
		if len(applier.applied) != 0 {
			t.Error("expected nothing applied")
		}
	})

	t.Run("ignores other events", func(t *testing.T) {
		applier := &recordingApplier{}
		body := `{"event":"service.added"}`

		rec := postEvent(EventsHandler(secret, applier), body, SignPayload(secret, []byte(body)))

		if rec.Code != http.StatusAccepted {
			t.Errorf("expected 202, got %d", rec.Code)
		}
		if len(applier.applied) != 0 {
			t.Error("expected nothing applied")
		}
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		body := `not json`
		rec := postEvent(EventsHandler(secret, &recordingApplier{}), body, SignPayload(secret, []byte(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("rejects oversized body", func(t *testing.T) {
		body := strings.Repeat("x", maxEventBodyBytes+1)
		rec := postEvent(EventsHandler(secret, &recordingApplier{}), body, SignPayload(secret, []byte(body)))
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("expected 413, got %d", rec.Code)
		}
	})
}
