// Package crypt derives firmware keys and decrypts encrypted firmware
// packages.
package crypt

import (
	"context"
	"crypto/md5"
	"strings"

	"github.com/pkg/errors"

	"github.com/mattchengg/susgo/internal/firmware"
	"github.com/mattchengg/susgo/internal/fus"
)

// KeySize is the length of every firmware key.
const KeySize = md5.Size

// EncVersion is the generation of the firmware encryption scheme.
type EncVersion int

const (
	V2 EncVersion = 2
	V4 EncVersion = 4
)

// ParseEncVersion validates a user supplied scheme number.
func ParseEncVersion(n int) (EncVersion, error) {
	switch EncVersion(n) {
	case V2, V4:
		return EncVersion(n), nil
	}
	return 0, errors.Errorf("crypt: unknown encryption version %d", n)
}

// EncVersionOf picks the scheme from a binary filename: .enc2 is V2,
// everything else V4.
func EncVersionOf(filename string) EncVersion {
	if strings.HasSuffix(filename, ".enc2") {
		return V2
	}
	return V4
}

// DecryptedName strips the .enc2 or .enc4 extension.
func DecryptedName(filename string) string {
	return strings.TrimSuffix(strings.TrimSuffix(filename, ".enc4"), ".enc2")
}

// Informer performs the binary-inform round trip. *fus.Client implements it.
type Informer interface {
	BinaryInform(ctx context.Context, req fus.InformRequest) (*fus.BinaryInfo, error)
}

// KeyRequest identifies the firmware a key is derived for. DeviceID is only
// sent for V4.
type KeyRequest struct {
	Version  string
	Model    string
	Region   string
	DeviceID string
}

// V2Key derives the legacy key: MD5 of "region:model:version".
func V2Key(version, model, region string) []byte {
	sum := md5.Sum([]byte(region + ":" + model + ":" + version))
	return sum[:]
}

// V4Key asks the server for the latest firmware version and its logic value
// and derives the key from the two.
func V4Key(ctx context.Context, informer Informer, req KeyRequest) ([]byte, error) {
	info, err := informer.BinaryInform(ctx, fus.InformRequest{
		Version:  firmware.NormalizeVersion(req.Version),
		Model:    req.Model,
		Region:   req.Region,
		DeviceID: req.DeviceID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "crypt: binary inform")
	}

	switch {
	case info.LatestFWVersion == "":
		return nil, &ProtocolResponseError{Field: "LATEST_FW_VERSION", Status: info.Status}
	case info.LogicValueFactory == "":
		return nil, &ProtocolResponseError{Field: "LOGIC_VALUE_FACTORY", Status: info.Status}
	}

	decKey := firmware.LogicCheck(info.LatestFWVersion, info.LogicValueFactory)
	if decKey == "" {
		return nil, &ProtocolResponseError{Field: "LATEST_FW_VERSION", Status: info.Status}
	}
	sum := md5.Sum([]byte(decKey))
	return sum[:], nil
}

// DeriveKey dispatches on the scheme. informer may be nil for V2.
func DeriveKey(ctx context.Context, ver EncVersion, informer Informer, req KeyRequest) ([]byte, error) {
	switch ver {
	case V2:
		return V2Key(req.Version, req.Model, req.Region), nil
	case V4:
		if informer == nil {
			return nil, errors.New("crypt: V4 keys need a FUS session")
		}
		return V4Key(ctx, informer, req)
	}
	return nil, errors.Errorf("crypt: unknown encryption version %d", ver)
}
