// Package signature validates inbound event envelopes against a subscriber
// secret before they are admitted to the delivery pipeline.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	ErrMissingSignature = errors.New("missing signature in payload")
	ErrMissingBody      = errors.New("missing body in payload")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Verify checks the HMAC-SHA256 hex digest of the envelope's "body" field,
// keyed by secret, against its "signature" field. With no secret configured
// verification is a no-op. The envelope is never modified.
func Verify(secret string, envelope map[string]any) error {
	if secret == "" {
		return nil
	}

	sig, ok := envelope["signature"].(string)
	if !ok || sig == "" {
		return ErrMissingSignature
	}
	body, ok := envelope["body"].(string)
	if !ok {
		return ErrMissingBody
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	want := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(sig), []byte(want)) {
		return ErrInvalidSignature
	}
	return nil
}
