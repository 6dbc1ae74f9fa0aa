package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"subscription-engine/internal/core/ports"
)

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestVerify(t *testing.T) {
	v := NewSHA256Verifier(testHashKey, testHashIV)
	enc := "deadbeefcafe"

	delimited := sha256Hex("HashKey=" + testHashKey + "&" + enc + "&HashIV=" + testHashIV)
	concatenated := sha256Hex(testHashKey + enc + testHashIV)

	tests := []struct {
		name string
		sig  string
		want ports.VerifyResult
	}{
		{"delimited recipe", delimited, ports.VerifyPass},
		{"concatenated recipe", concatenated, ports.VerifyPass},
		{"uppercase signature", strings.ToUpper(delimited), ports.VerifyPass},
		{"wrong signature", sha256Hex("something else"), ports.VerifyFail},
		{"absent signature", "", ports.VerifySkipped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Verify(enc, tt.sig))
		})
	}
}
