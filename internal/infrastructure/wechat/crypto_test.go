package wechat

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSerial = "5157F09EFDC096DE15EBF8A99BEB3F1C"

func newTestCrypto(t *testing.T) (*Crypto, *rsa.PrivateKey, []byte) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	apiKey := []byte("0123456789abcdef0123456789abcdef")
	c, err := NewCrypto(apiKey, map[string]*rsa.PublicKey{testSerial: &key.PublicKey})
	require.NoError(t, err)

	return c, key, apiKey
}

func signMessage(t *testing.T, key *rsa.PrivateKey, timestamp, nonce string, body []byte) string {
	t.Helper()

	message := timestamp + "\n" + nonce + "\n" + string(body) + "\n"
	hashed := sha256.Sum256([]byte(message))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, hashed[:])
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(sig)
}

func TestNewCrypto_RejectsShortKey(t *testing.T) {
	_, err := NewCrypto([]byte("too-short"), nil)
	assert.Error(t, err)
}

func TestVerifySignature(t *testing.T) {
	c, key, _ := newTestCrypto(t)
	body := []byte(`{"id":"evt-1"}`)

	t.Run("valid signature accepted", func(t *testing.T) {
		sig := signMessage(t, key, "1700000000", "nonce-1", body)
		err := c.VerifySignature("1700000000", "nonce-1", body, testSerial, sig)
		assert.NoError(t, err)
	})

	t.Run("tampered body rejected", func(t *testing.T) {
		sig := signMessage(t, key, "1700000000", "nonce-1", body)
		err := c.VerifySignature("1700000000", "nonce-1", []byte(`{"id":"evt-2"}`), testSerial, sig)
		assert.Error(t, err)
	})

	t.Run("tampered timestamp rejected", func(t *testing.T) {
		sig := signMessage(t, key, "1700000000", "nonce-1", body)
		err := c.VerifySignature("1700000099", "nonce-1", body, testSerial, sig)
		assert.Error(t, err)
	})

	t.Run("unknown serial rejected", func(t *testing.T) {
		sig := signMessage(t, key, "1700000000", "nonce-1", body)
		err := c.VerifySignature("1700000000", "nonce-1", body, "DEADBEEF", sig)
		assert.Error(t, err)
	})

	t.Run("garbage signature rejected", func(t *testing.T) {
		err := c.VerifySignature("1700000000", "nonce-1", body, testSerial, "not-base64!!")
		assert.Error(t, err)
	})
}

func TestDecryptResource(t *testing.T) {
	c, _, apiKey := newTestCrypto(t)

	block, err := aes.NewCipher(apiKey)
	require.NoError(t, err)
	aead, err := cipher.NewGCM(block)
	require.NoError(t, err)

	nonce := []byte("0123456789ab")
	aad := []byte("transaction")
	plaintext := []byte(`{"out_trade_no":"ORD-1","trade_state":"SUCCESS"}`)
	ciphertext := aead.Seal(nil, nonce, plaintext, aad)

	t.Run("round trip", func(t *testing.T) {
		got, err := c.DecryptResource(ciphertext, nonce, aad)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	})

	t.Run("wrong associated data fails", func(t *testing.T) {
		_, err := c.DecryptResource(ciphertext, nonce, []byte("refund"))
		assert.Error(t, err)
	})

	t.Run("corrupted ciphertext fails", func(t *testing.T) {
		mangled := append([]byte(nil), ciphertext...)
		mangled[0] ^= 0xff
		_, err := c.DecryptResource(mangled, nonce, aad)
		assert.Error(t, err)
	})
}
