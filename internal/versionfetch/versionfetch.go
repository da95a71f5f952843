// Package versionfetch reads the public version.xml that lists the current
// firmware of a model and region.
package versionfetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mattchengg/susgo/internal/firmware"
)

const DefaultBaseURL = "https://fota-cloud-dn.ospserver.net/firmware/"

var (
	ErrModelNotFound = errors.New("versionfetch: model or region not found")
	ErrNoFirmware    = errors.New("versionfetch: no firmware available")
)

// FirmwareSpec is one listed firmware version. Size is 0 when unknown.
type FirmwareSpec struct {
	Version string
	Size    int64
}

type VersionInfo struct {
	Latest  FirmwareSpec
	Upgrade []FirmwareSpec
}

type versionXML struct {
	XMLName  xml.Name `xml:"versioninfo"`
	Firmware struct {
		Version struct {
			Latest  string `xml:"latest"`
			Upgrade struct {
				Value []struct {
					Text   string `xml:",chardata"`
					FWSize string `xml:"fwsize,attr"`
				} `xml:"value"`
			} `xml:"upgrade"`
		} `xml:"version"`
	} `xml:"firmware"`
}

type Fetcher struct {
	BaseURL string
	Client  *http.Client
}

func New() *Fetcher {
	return &Fetcher{
		BaseURL: DefaultBaseURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (f *Fetcher) fetch(ctx context.Context, model, region string) (*versionXML, error) {
	url := fmt.Sprintf("%s%s/%s/version.xml", strings.TrimSuffix(f.BaseURL, "/")+"/", region, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "curl/7.87.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "versionfetch")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, errors.Wrapf(ErrModelNotFound, "%s/%s", model, region)
	}
	if resp.StatusCode >= 400 {
		return nil, errors.Errorf("versionfetch: HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "versionfetch: read body")
	}

	var v versionXML
	if err := xml.Unmarshal(body, &v); err != nil {
		return nil, errors.Wrap(err, "versionfetch: parse version.xml")
	}
	return &v, nil
}

// Latest returns the normalized latest version code.
func (f *Fetcher) Latest(ctx context.Context, model, region string) (string, error) {
	v, err := f.fetch(ctx, model, region)
	if err != nil {
		return "", err
	}
	latest := strings.TrimSpace(v.Firmware.Version.Latest)
	if latest == "" {
		return "", ErrNoFirmware
	}
	return firmware.NormalizeVersion(latest), nil
}

// Info returns the latest version and every listed upgrade.
func (f *Fetcher) Info(ctx context.Context, model, region string) (*VersionInfo, error) {
	v, err := f.fetch(ctx, model, region)
	if err != nil {
		return nil, err
	}

	info := &VersionInfo{}
	if latest := strings.TrimSpace(v.Firmware.Version.Latest); latest != "" {
		info.Latest = FirmwareSpec{Version: firmware.NormalizeVersion(latest)}
	}
	for _, u := range v.Firmware.Version.Upgrade.Value {
		size, _ := strconv.ParseInt(u.FWSize, 10, 64)
		info.Upgrade = append(info.Upgrade, FirmwareSpec{
			Version: firmware.NormalizeVersion(strings.TrimSpace(u.Text)),
			Size:    size,
		})
	}
	return info, nil
}
