package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"subscription-engine/internal/core/ports"
)

// SHA256Verifier checks the gateway's detached checksum over the raw
// ciphertext. Two digest recipes are accepted because the gateway family has
// used both.
type SHA256Verifier struct {
	key string
	iv  string
}

func NewSHA256Verifier(key, iv string) *SHA256Verifier {
	return &SHA256Verifier{key: key, iv: iv}
}

// Verify compares the provided signature against both candidate digests.
// An absent signature is skipped, never failed.
func (v *SHA256Verifier) Verify(ciphertext, providedSignature string) ports.VerifyResult {
	if providedSignature == "" {
		return ports.VerifySkipped
	}
	candidates := []string{
		"HashKey=" + v.key + "&" + ciphertext + "&HashIV=" + v.iv,
		v.key + ciphertext + v.iv,
	}
	for _, c := range candidates {
		sum := sha256.Sum256([]byte(c))
		if strings.EqualFold(hex.EncodeToString(sum[:]), providedSignature) {
			return ports.VerifyPass
		}
	}
	return ports.VerifyFail
}
