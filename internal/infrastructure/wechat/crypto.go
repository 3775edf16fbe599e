package wechat

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/lumacart/order-gateway/internal/application"
)

// Crypto verifies notification signatures against the gateway's platform
// keys and opens the AEAD resource block with the merchant's API v3 key.
// The instance is stateless and safe for concurrent use.
type Crypto struct {
	aead cipher.AEAD
	keys map[string]*rsa.PublicKey
}

// NewCrypto builds the provider from the 32-byte API v3 key and the
// platform verification keys indexed by certificate serial.
func NewCrypto(apiV3Key []byte, keys map[string]*rsa.PublicKey) (*Crypto, error) {
	if len(apiV3Key) != 32 {
		return nil, errors.New("api v3 key must be exactly 32 bytes")
	}

	block, err := aes.NewCipher(apiV3Key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Crypto{aead: aead, keys: keys}, nil
}

// VerifySignature checks the RSA-SHA256 signature the gateway computed over
// timestamp, nonce and the verbatim body, each newline terminated. The body
// must be exactly the bytes received on the wire.
func (c *Crypto) VerifySignature(timestamp, nonce string, body []byte, serial, signature string) error {
	key, ok := c.keys[serial]
	if !ok {
		return fmt.Errorf("no verification key for serial %s", serial)
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}

	message := timestamp + "\n" + nonce + "\n" + string(body) + "\n"
	hashed := sha256.Sum256([]byte(message))

	if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, hashed[:], sig); err != nil {
		return fmt.Errorf("signature mismatch: %w", err)
	}
	return nil
}

// DecryptResource opens the resource ciphertext. The associated data must
// match what the gateway bound at encryption time; a mismatch fails
// authentication and returns no plaintext.
func (c *Crypto) DecryptResource(ciphertext, nonce, associatedData []byte) ([]byte, error) {
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, associatedData)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt resource: %w", err)
	}
	return plaintext, nil
}

var _ application.CryptoProvider = (*Crypto)(nil)
