package fus

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// InformRequest carries the device fields of a binary-inform request. Version
// must already be in normalized four part form.
type InformRequest struct {
	Version  string
	Model    string
	Region   string
	DeviceID string
}

// BinaryInfo is the flattened binary-inform response. Fields missing from the
// response are left empty; callers decide which ones they need.
type BinaryInfo struct {
	Status            int
	LatestFWVersion   string
	LogicValueFactory string
	BinaryName        string
	BinaryByteSize    int64
	ModelPath         string
}

type dataField struct {
	Data string `xml:"Data"`
}

type informResponse struct {
	XMLName xml.Name `xml:"FUSMsg"`
	Body    struct {
		Results struct {
			Status          string    `xml:"Status"`
			LatestFWVersion dataField `xml:"LATEST_FW_VERSION"`
		} `xml:"Results"`
		Put struct {
			LogicValueFactory dataField `xml:"LOGIC_VALUE_FACTORY"`
			BinaryName        dataField `xml:"BINARY_NAME"`
			BinaryByteSize    dataField `xml:"BINARY_BYTE_SIZE"`
			ModelPath         dataField `xml:"MODEL_PATH"`
		} `xml:"Put"`
	} `xml:"FUSBody"`
}

// ParseBinaryInfo decodes a binary-inform response body.
func ParseBinaryInfo(body []byte) (*BinaryInfo, error) {
	var resp informResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "fus: parse binary inform response")
	}

	info := &BinaryInfo{
		LatestFWVersion:   strings.TrimSpace(resp.Body.Results.LatestFWVersion.Data),
		LogicValueFactory: strings.TrimSpace(resp.Body.Put.LogicValueFactory.Data),
		BinaryName:        strings.TrimSpace(resp.Body.Put.BinaryName.Data),
		ModelPath:         strings.TrimSpace(resp.Body.Put.ModelPath.Data),
	}
	if s := strings.TrimSpace(resp.Body.Results.Status); s != "" {
		status, err := strconv.Atoi(s)
		if err != nil {
			return nil, errors.Wrapf(err, "fus: bad status %q", s)
		}
		info.Status = status
	}
	if s := strings.TrimSpace(resp.Body.Put.BinaryByteSize.Data); s != "" {
		size, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "fus: bad binary size %q", s)
		}
		info.BinaryByteSize = size
	}
	return info, nil
}
