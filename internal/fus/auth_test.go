package fus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const (
	testNonce    = "GVBZcL7hnRNDjtpq"
	testEncNonce = "op+g6mNW5FRfKyOAC3Jd/RJytJcjTr3qaz8msaYzbjk="
)

func TestDecryptNonceKnownAnswer(t *testing.T) {
	nonce, err := DecryptNonce(testEncNonce)
	require.NoError(t, err)
	assert.Equal(t, testNonce, nonce)
}

func TestSignatureKnownAnswer(t *testing.T) {
	sig, err := Signature("0123456789abcdef")
	require.NoError(t, err)
	assert.Equal(t, "KM8PEJk/tIE0El5Rx4+tIftq2qDyWCFcNDPD+6jK9FE=", sig)
}

func TestNonceKey(t *testing.T) {
	key, err := nonceKey("0123456789abcdef")
	require.NoError(t, err)
	assert.Equal(t, "vicopx7dquicopx79u7qab84rpc16gvk", string(key))

	_, err = nonceKey("short")
	assert.Error(t, err)
}

func TestDecryptNonceRejectsGarbage(t *testing.T) {
	_, err := DecryptNonce("not base64!")
	assert.Error(t, err)

	_, err = DecryptNonce("AAAA")
	assert.Error(t, err)
}

func TestNonceRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nonce := rapid.StringMatching(`[A-Za-z0-9]{16}`).Draw(t, "nonce")
		enc, err := aesEncrypt([]byte(nonce), []byte(key1))
		require.NoError(t, err)
		dec, err := aesDecrypt(enc, []byte(key1))
		require.NoError(t, err)
		assert.Equal(t, nonce, string(dec))
	})
}
