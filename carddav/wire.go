package carddav

import (
	"encoding/xml"

	"github.com/agentdav/bridge/internal/webdav"
)

type addressDataReq struct {
	XMLName  xml.Name  `xml:"urn:ietf:params:xml:ns:carddav address-data"`
	Allprop  *struct{} `xml:"allprop,omitempty"`
}

type addressDataResp struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:carddav address-data"`
	Data    []byte   `xml:",chardata"`
}

type textMatch struct {
	Text string `xml:",chardata"`
}

type propFilter struct {
	XMLName   xml.Name   `xml:"urn:ietf:params:xml:ns:carddav prop-filter"`
	Name      string     `xml:"name,attr"`
	TextMatch *textMatch `xml:"text-match,omitempty"`
}

type filter struct {
	XMLName     xml.Name     `xml:"urn:ietf:params:xml:ns:carddav filter"`
	Test        string       `xml:"test,attr,omitempty"`
	PropFilters []propFilter `xml:"prop-filter,omitempty"`
}

type addressbookQuery struct {
	XMLName xml.Name     `xml:"urn:ietf:params:xml:ns:carddav addressbook-query"`
	Prop    *webdav.Prop `xml:"DAV: prop"`
	Filter  *filter      `xml:"filter,omitempty"`
}

type addressbookMultiget struct {
	XMLName xml.Name      `xml:"urn:ietf:params:xml:ns:carddav addressbook-multiget"`
	Hrefs   []webdav.Href `xml:"href"`
	Prop    *webdav.Prop  `xml:"DAV: prop"`
}

type addressBookHomeSet struct {
	XMLName xml.Name    `xml:"urn:ietf:params:xml:ns:carddav addressbook-home-set"`
	Href    webdav.Href `xml:"href"`
}

type addressBookDescription struct {
	XMLName     xml.Name `xml:"urn:ietf:params:xml:ns:carddav addressbook-description"`
	Description string   `xml:",chardata"`
}

type maxResourceSize struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:carddav max-resource-size"`
	Size    int64    `xml:",chardata"`
}

type supportedAddressData struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:carddav supported-address-data"`
}

var addressBookPropFind = webdav.NewPropNamePropFind(
	webdav.ResourceTypeName,
	webdav.DisplayNameName,
	webdav.CTagName,
	addressBookDescName,
	maxResourceSizeName,
)

func encodeAddressDataReq() (*webdav.Prop, error) {
	addrData := addressDataReq{Allprop: &struct{}{}}
	getETag := webdav.NewRawXMLElement(webdav.GetETagName, nil, nil)
	getLastMod := webdav.NewRawXMLElement(webdav.GetLastModifiedName, nil, nil)
	return webdav.EncodeProp(&addrData, getETag, getLastMod)
}
