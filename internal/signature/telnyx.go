package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
)

// TelnyxVerifier checks the telnyx-signature header: a hex-encoded
// HMAC-SHA256 of the raw body keyed with the shared webhook secret.
type TelnyxVerifier struct {
	secret []byte
	log    *slog.Logger
}

func NewTelnyxVerifier(secret string, log *slog.Logger) *TelnyxVerifier {
	if log == nil {
		log = slog.Default()
	}
	return &TelnyxVerifier{secret: []byte(secret), log: log}
}

func (v *TelnyxVerifier) Verify(payload []byte, header string) bool {
	if len(v.secret) == 0 {
		v.log.Warn("no telnyx webhook secret configured, skipping signature verification")
		return true
	}

	got, err := hex.DecodeString(strings.TrimSpace(header))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), got)
}
