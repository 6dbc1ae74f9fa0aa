package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// EventSourcePeriod tags events delivered by the gateway's recurring-payment
// notify channel.
const EventSourcePeriod = "gateway_period"

// WebhookEvent is the idempotency ledger entry for one inbound delivery.
// The row is inserted (keyed by the ciphertext fingerprint) before any
// decryption attempt, so a retry of the same bytes can short-circuit.
type WebhookEvent struct {
	EventHash   string     `json:"event_hash"` // SHA-256 hex of the raw ciphertext
	EventSource string     `json:"event_source"`
	RawEnc      string     `json:"raw_enc"`
	Signature   *string    `json:"signature,omitempty"`
	Payload     []byte     `json:"payload,omitempty"` // decoded result or decode diagnostics (JSON)
	Processed   bool       `json:"processed"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Fingerprint computes the ledger key for a raw ciphertext: a deterministic
// SHA-256 hex digest, so byte-identical deliveries collide.
func Fingerprint(rawEnc string) string {
	sum := sha256.Sum256([]byte(rawEnc))
	return hex.EncodeToString(sum[:])
}
