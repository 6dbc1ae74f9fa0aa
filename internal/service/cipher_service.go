package service

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"regexp"
	"unicode/utf8"

	"subscription-engine/internal/core/ports"
)

// strictHexRe matches ciphertexts that can only be hex. Hex is a subset of
// the base64 alphabet, so detection picks the decode order; both are still
// attempted.
var strictHexRe = regexp.MustCompile(`^[0-9a-fA-F]+$`)

// Trailing filler bytes observed from the gateway family when standard
// padding validation fails: NUL and other control bytes.
const maxFillerByte = 0x1f

// AESCipherService implements ports.CipherService using AES-256-CBC with the
// gateway's pre-shared key and IV.
type AESCipherService struct {
	key []byte
	iv  []byte
}

// NewAESCipherService creates the decryption service. key must be 32 bytes
// and iv 16 bytes (raw, not encoded); wrong lengths are a configuration
// error, not a per-request one.
func NewAESCipherService(key, iv string) (*AESCipherService, error) {
	k := []byte(key)
	v := []byte(iv)
	if len(k) != 32 {
		return nil, fmt.Errorf("cipher key must be 32 bytes, got %d", len(k))
	}
	if len(v) != aes.BlockSize {
		return nil, fmt.Errorf("cipher iv must be %d bytes, got %d", aes.BlockSize, len(v))
	}
	return &AESCipherService{key: k, iv: v}, nil
}

// Decrypt tries every (encoding, padding-strategy) combination before giving
// up. Historical senders have used hex and base64 inconsistently, so the
// detected-first order is a preference, not a gate.
func (s *AESCipherService) Decrypt(ciphertext string) (*ports.DecryptResult, error) {
	if ciphertext == "" {
		return nil, fmt.Errorf("empty ciphertext")
	}

	var lastErr error
	for _, encoding := range decodeOrder(ciphertext) {
		raw, err := decodeCiphertext(encoding, ciphertext)
		if err != nil {
			lastErr = err
			continue
		}
		if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
			lastErr = fmt.Errorf("%s-decoded length %d is not a block multiple", encoding, len(raw))
			continue
		}

		plaintext, padding, err := s.decryptCBC(raw)
		if err != nil {
			lastErr = err
			continue
		}
		return &ports.DecryptResult{
			Plaintext: plaintext,
			Encoding:  encoding,
			Padding:   padding,
		}, nil
	}

	return nil, fmt.Errorf("decrypt: exhausted all encoding/padding combinations: %w", lastErr)
}

// decodeOrder returns the encodings to attempt, preferred first.
func decodeOrder(ciphertext string) []string {
	if len(ciphertext)%2 == 0 && strictHexRe.MatchString(ciphertext) {
		return []string{"hex", "base64"}
	}
	return []string{"base64", "hex"}
}

func decodeCiphertext(encoding, ciphertext string) ([]byte, error) {
	switch encoding {
	case "hex":
		return hex.DecodeString(ciphertext)
	default:
		return base64.StdEncoding.DecodeString(ciphertext)
	}
}

func (s *AESCipherService) decryptCBC(raw []byte) (string, string, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", "", fmt.Errorf("creating cipher: %w", err)
	}

	buf := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, s.iv).CryptBlocks(buf, raw)

	plaintext, padding := unpad(buf)
	// A wrong decode branch produces garbage; reject it so the other
	// encoding still gets its turn.
	if !utf8.Valid(plaintext) {
		return "", "", fmt.Errorf("plaintext is not valid utf-8")
	}
	return string(plaintext), padding, nil
}

// unpad removes block padding: strict PKCS#7 first, then manual stripping
// of the gateway's non-standard trailing filler bytes.
func unpad(buf []byte) ([]byte, string) {
	if out, ok := stripPKCS7(buf); ok {
		return out, "pkcs7"
	}
	return stripFiller(buf), "trim"
}

// stripPKCS7 validates and removes standard block-cipher padding. Returns
// false if the padding byte value is inconsistent.
func stripPKCS7(buf []byte) ([]byte, bool) {
	if len(buf) == 0 {
		return nil, false
	}
	n := int(buf[len(buf)-1])
	if n == 0 || n > aes.BlockSize || n > len(buf) {
		return nil, false
	}
	for _, b := range buf[len(buf)-n:] {
		if int(b) != n {
			return nil, false
		}
	}
	return buf[:len(buf)-n], true
}

// stripFiller trims exactly the trailing filler bytes, never reaching into
// legitimate plaintext characters.
func stripFiller(buf []byte) []byte {
	end := len(buf)
	for end > 0 && buf[end-1] <= maxFillerByte {
		end--
	}
	return buf[:end]
}
