package crypt

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidBlockSize means the ciphertext length is zero or not a
	// multiple of the AES block size.
	ErrInvalidBlockSize = errors.New("crypt: invalid input block size")
	ErrInvalidChunkSize = errors.New("crypt: chunk size must be a positive multiple of 16")
	ErrInvalidKey       = errors.New("crypt: key must be 16 bytes")
	// ErrCorruptPadding usually means a wrong key, sometimes a damaged file.
	ErrCorruptPadding = errors.New("crypt: corrupt padding")
	// ErrTruncatedInput means the source ended before the declared length.
	ErrTruncatedInput = errors.New("crypt: input shorter than declared length")
)

// ProtocolResponseError reports a binary-inform answer that cannot yield a
// key. It almost always means the model, region and device id do not match.
type ProtocolResponseError struct {
	Field  string
	Status int
}

func (e *ProtocolResponseError) Error() string {
	return fmt.Sprintf("could not get decryption key from servers (status %d, no usable %s) - bad model/region/imei?",
		e.Status, e.Field)
}

// IOError wraps a failure of the input source or the output sink.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return "crypt: " + e.Op + ": " + e.Err.Error() }

func (e *IOError) Unwrap() error { return e.Err }

// IsIOError tells I/O failures apart from key and ciphertext problems.
func IsIOError(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}
