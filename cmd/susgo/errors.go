package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mattchengg/susgo/internal/crypt"
	"github.com/mattchengg/susgo/internal/versionfetch"
)

// describe turns an error into something the user can act on.
func describe(err error) string {
	var perr *crypt.ProtocolResponseError
	switch {
	case errors.As(err, &perr):
		return perr.Error()
	case errors.Is(err, crypt.ErrCorruptPadding):
		return "decryption produced garbage - wrong key (check version/model/region/imei) or corrupt input: " + err.Error()
	case errors.Is(err, crypt.ErrTruncatedInput):
		return "encrypted file is incomplete, download it again: " + err.Error()
	case errors.Is(err, crypt.ErrInvalidBlockSize):
		return "file is not an encrypted firmware package: " + err.Error()
	case crypt.IsIOError(err):
		return "I/O failure, the key is fine: " + err.Error()
	case errors.Is(err, versionfetch.ErrModelNotFound):
		return "model or region not found"
	case errors.Is(err, context.Canceled):
		return "interrupted"
	}
	return err.Error()
}
