package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"
)

func stripeHeader(secret string, ts int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestStripeVerifier_AcceptsValidSignature(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := NewStripeVerifier("whsec_test", 5*time.Minute, nil)
	v.now = func() time.Time { return now }

	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	if !v.Verify(payload, stripeHeader("whsec_test", now.Unix(), payload)) {
		t.Fatalf("expected valid signature to verify")
	}
}

func TestStripeVerifier_RejectsBadSignatures(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := NewStripeVerifier("whsec_test", 5*time.Minute, nil)
	v.now = func() time.Time { return now }

	payload := []byte(`{"id":"evt_1"}`)
	good := stripeHeader("whsec_test", now.Unix(), payload)

	cases := []struct {
		name   string
		header string
		body   []byte
	}{
		{"wrong secret", stripeHeader("whsec_other", now.Unix(), payload), payload},
		{"tampered body", good, []byte(`{"id":"evt_2"}`)},
		{"missing header", "", payload},
		{"garbage header", "not-a-signature", payload},
		{"stale timestamp", stripeHeader("whsec_test", now.Add(-time.Hour).Unix(), payload), payload},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if v.Verify(tc.body, tc.header) {
				t.Fatalf("expected verification failure")
			}
		})
	}
}

func TestStripeVerifier_FailsOpenWithoutSecret(t *testing.T) {
	v := NewStripeVerifier("", 5*time.Minute, nil)
	if !v.Verify([]byte(`{}`), "") {
		t.Fatalf("unconfigured verifier must fail open")
	}
}

func TestTelnyxVerifier(t *testing.T) {
	payload := []byte(`{"data":{"event_type":"call.answered"}}`)
	mac := hmac.New(sha256.New, []byte("tsec"))
	mac.Write(payload)
	header := hex.EncodeToString(mac.Sum(nil))

	v := NewTelnyxVerifier("tsec", nil)
	if !v.Verify(payload, header) {
		t.Fatalf("expected valid signature to verify")
	}
	if v.Verify(payload, "deadbeef") {
		t.Fatalf("expected wrong signature to fail")
	}
	if v.Verify([]byte(`{}`), header) {
		t.Fatalf("expected tampered body to fail")
	}

	open := NewTelnyxVerifier("", nil)
	if !open.Verify(payload, "") {
		t.Fatalf("unconfigured verifier must fail open")
	}
}
