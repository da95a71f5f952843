package fus

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"

	"github.com/pkg/errors"
)

// Fixed keys of the FUS nonce exchange.
const (
	key1 = "vicopx7dqu06emacgpnpy8j8zwhduwlh"
	key2 = "9u7qab84rpc16gvk"
)

var errBadPadding = errors.New("fus: bad nonce padding")

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padText := bytes.Repeat([]byte{byte(padding)}, padding)
	return append(data, padText...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	length := len(data)
	if length == 0 {
		return nil, errBadPadding
	}
	padding := int(data[length-1])
	if padding == 0 || padding > aes.BlockSize || padding > length {
		return nil, errBadPadding
	}
	return data[:length-padding], nil
}

// The FUS handshake uses CBC with the first 16 key bytes as IV.
func aesEncrypt(input, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(append([]byte(nil), input...), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, key[:aes.BlockSize]).CryptBlocks(ciphertext, padded)
	return ciphertext, nil
}

func aesDecrypt(input, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(input) == 0 || len(input)%aes.BlockSize != 0 {
		return nil, errors.Errorf("fus: ciphertext length %d is not a multiple of %d", len(input), aes.BlockSize)
	}
	plaintext := make([]byte, len(input))
	cipher.NewCBCDecrypter(block, key[:aes.BlockSize]).CryptBlocks(plaintext, input)
	return pkcs7Unpad(plaintext)
}

func nonceKey(nonce string) ([]byte, error) {
	if len(nonce) < 16 {
		return nil, errors.Errorf("fus: nonce too short (%d bytes)", len(nonce))
	}
	key := make([]byte, 32)
	for i := 0; i < 16; i++ {
		key[i] = key1[int(nonce[i])%16]
	}
	copy(key[16:], key2)
	return key, nil
}

// Signature computes the Authorization signature for a decrypted nonce.
func Signature(nonce string) (string, error) {
	nkey, err := nonceKey(nonce)
	if err != nil {
		return "", err
	}
	authData, err := aesEncrypt([]byte(nonce), nkey)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(authData), nil
}

// DecryptNonce decodes the NONCE header sent by the server.
func DecryptNonce(encNonce string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encNonce)
	if err != nil {
		return "", errors.Wrap(err, "fus: decode nonce")
	}
	decrypted, err := aesDecrypt(data, []byte(key1))
	if err != nil {
		return "", errors.Wrap(err, "fus: decrypt nonce")
	}
	return string(decrypted), nil
}
