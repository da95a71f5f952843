package fus

import (
	"encoding/xml"

	"github.com/mattchengg/susgo/internal/firmware"
)

const (
	protoVer      = "1.0"
	clientProduct = "Smart Switch"
	clientVersion = "4.3.23123_1"
)

type fusMsg struct {
	XMLName xml.Name `xml:"FUSMsg"`
	FUSHdr  fusHdr   `xml:"FUSHdr"`
	FUSBody fusBody  `xml:"FUSBody"`
}

type fusHdr struct {
	ProtoVer string `xml:"ProtoVer"`
}

type fusBody struct {
	Put fusPut `xml:"Put"`
}

type fusPut struct {
	Elements []fusElement
}

type fusElement struct {
	Name string
	Data string
}

// MarshalXML writes every element as <NAME><Data>value</Data></NAME>.
func (p fusPut) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, elem := range p.Elements {
		elemStart := xml.StartElement{Name: xml.Name{Local: elem.Name}}
		if err := e.EncodeToken(elemStart); err != nil {
			return err
		}
		if err := e.EncodeElement(elem.Data, xml.StartElement{Name: xml.Name{Local: "Data"}}); err != nil {
			return err
		}
		if err := e.EncodeToken(elemStart.End()); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

func marshalPut(elements []fusElement) ([]byte, error) {
	msg := fusMsg{
		FUSHdr:  fusHdr{ProtoVer: protoVer},
		FUSBody: fusBody{Put: fusPut{Elements: elements}},
	}
	return xml.Marshal(msg)
}

// regionExtras are the carrier fields some regions need to get an answer.
var regionExtras = map[string][]fusElement{
	"EUX": {
		{"DEVICE_AID_CODE", "EUX"},
		{"DEVICE_CC_CODE", "DE"},
		{"MCC_NUM", "262"},
		{"MNC_NUM", "01"},
	},
	"EUY": {
		{"DEVICE_AID_CODE", "EUY"},
		{"DEVICE_CC_CODE", "RS"},
		{"MCC_NUM", "220"},
		{"MNC_NUM", "01"},
	},
}

// BuildBinaryInform builds the NF_DownloadBinaryInform.do request body.
func BuildBinaryInform(req InformRequest, nonce string) ([]byte, error) {
	elements := []fusElement{
		{"ACCESS_MODE", "2"},
		{"BINARY_NATURE", "1"},
		{"CLIENT_PRODUCT", clientProduct},
		{"DEVICE_FW_VERSION", req.Version},
		{"DEVICE_LOCAL_CODE", req.Region},
		{"DEVICE_MODEL_NAME", req.Model},
		{"UPGRADE_VARIABLE", "0"},
		{"OBEX_SUPPORT", "0"},
		{"DEVICE_IMEI_PUSH", req.DeviceID},
		{"DEVICE_PLATFORM", "Android"},
		{"CLIENT_VERSION", clientVersion},
		{"LOGIC_CHECK", firmware.LogicCheck(req.Version, nonce)},
	}
	elements = append(elements, regionExtras[req.Region]...)
	return marshalPut(elements)
}

// BuildBinaryInit builds the NF_DownloadBinaryInitForMass.do request body.
func BuildBinaryInit(filename, nonce string) ([]byte, error) {
	return marshalPut([]fusElement{
		{"BINARY_FILE_NAME", filename},
		{"LOGIC_CHECK", firmware.LogicCheck(firmware.CheckInput(filename), nonce)},
	})
}
