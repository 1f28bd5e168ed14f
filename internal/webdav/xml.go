// Package webdav implements the low-level WebDAV (RFC 4918) wire protocol
// shared by the CalDAV and CardDAV clients: PROPFIND/PROPPATCH/REPORT
// request construction, multistatus decoding and the handful of DAV:
// properties every collection advertises (resourcetype, getetag, getctag,
// displayname, ...).
package webdav

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// Depth is the value of a WebDAV "Depth" header.
type Depth int

const (
	DepthZero Depth = 0
	DepthOne  Depth = 1
	// DepthInfinity is intentionally unused by any client call in this
	// package: both CalDAV and CardDAV servers are free to reject it, and
	// every query here already scopes to one collection (Depth one).
	DepthInfinity Depth = -1
)

func (d Depth) String() string {
	switch d {
	case DepthZero:
		return "0"
	case DepthOne:
		return "1"
	case DepthInfinity:
		return "infinity"
	default:
		return "0"
	}
}

var (
	ResourceTypeName           = xml.Name{Space: "DAV:", Local: "resourcetype"}
	DisplayNameName            = xml.Name{Space: "DAV:", Local: "displayname"}
	GetETagName                = xml.Name{Space: "DAV:", Local: "getetag"}
	GetLastModifiedName        = xml.Name{Space: "DAV:", Local: "getlastmodified"}
	GetContentLengthName       = xml.Name{Space: "DAV:", Local: "getcontentlength"}
	CurrentUserPrincipalName   = xml.Name{Space: "DAV:", Local: "current-user-principal"}
	CurrentUserPrivilegeSetXML = xml.Name{Space: "DAV:", Local: "current-user-privilege-set"}
	SyncTokenName              = xml.Name{Space: "DAV:", Local: "sync-token"}
	CTagName                   = xml.Name{Space: "http://calendarserver.org/ns/", Local: "getctag"}
)

// Href is a DAV:href element.
type Href struct {
	XMLName xml.Name `xml:"DAV: href"`
	Path    string   `xml:",chardata"`
}

// RawXMLValue is an undecoded XML element, kept around so callers can
// re-decode it into a concrete property type on demand.
type RawXMLValue struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Content []byte     `xml:",innerxml"`
}

func NewRawXMLElement(name xml.Name, attrs []xml.Attr, content []byte) *RawXMLValue {
	return &RawXMLValue{XMLName: name, Attrs: attrs, Content: content}
}

// Decode unmarshals the raw element into v by re-wrapping the captured
// inner XML in its original start tag and feeding it back through the
// standard decoder.
func (r *RawXMLValue) Decode(v interface{}) error {
	if r == nil {
		return fmt.Errorf("webdav: nil property")
	}
	var buf bytes.Buffer
	buf.WriteByte('<')
	buf.WriteString(r.XMLName.Local)
	if r.XMLName.Space != "" {
		buf.WriteString(` xmlns="`)
		buf.WriteString(r.XMLName.Space)
		buf.WriteByte('"')
	}
	buf.WriteByte('>')
	buf.Write(r.Content)
	buf.WriteString("</")
	buf.WriteString(r.XMLName.Local)
	buf.WriteByte('>')
	return xml.Unmarshal(buf.Bytes(), v)
}

// EncodeRawXMLElement marshals v and captures it as a RawXMLValue so it can
// be embedded as a child of a synthesized <prop> element.
func EncodeRawXMLElement(v interface{}) (*RawXMLValue, error) {
	b, err := xml.Marshal(v)
	if err != nil {
		return nil, err
	}
	var raw RawXMLValue
	if err := xml.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

// Prop is a DAV:prop element: an unordered bag of properties, each kept in
// raw form until a caller asks for a specific decoded type.
type Prop struct {
	XMLName xml.Name      `xml:"DAV: prop"`
	Raw     []RawXMLValue `xml:",any"`
}

func NewProp(values ...*RawXMLValue) *Prop {
	p := &Prop{}
	for _, v := range values {
		if v != nil {
			p.Raw = append(p.Raw, *v)
		}
	}
	return p
}

func EncodeProp(values ...interface{}) (*Prop, error) {
	p := &Prop{}
	for _, v := range values {
		switch t := v.(type) {
		case *RawXMLValue:
			if t != nil {
				p.Raw = append(p.Raw, *t)
			}
		default:
			raw, err := EncodeRawXMLElement(v)
			if err != nil {
				return nil, err
			}
			p.Raw = append(p.Raw, *raw)
		}
	}
	return p, nil
}

func (p *Prop) Get(name xml.Name) *RawXMLValue {
	if p == nil {
		return nil
	}
	for i := range p.Raw {
		if p.Raw[i].XMLName == name {
			return &p.Raw[i]
		}
	}
	return nil
}

// ErrNotFound is returned by Response.DecodeProp when the requested
// property was absent from the propstat (as opposed to present but
// unparseable).
var ErrNotFound = fmt.Errorf("webdav: property not found")

func IsNotFound(err error) bool {
	return err == ErrNotFound
}

// Status wraps the textual "HTTP/1.1 200 OK" status line of a propstat or
// response element.
type Status struct {
	Code int
	Text string
}

func (s *Status) Err() error {
	if s == nil || s.Code == 0 || (s.Code >= 200 && s.Code < 300) {
		return nil
	}
	return &HTTPError{Code: s.Code, Message: s.Text}
}

// HTTPError is returned for any non-2xx DAV response.
type HTTPError struct {
	Code    int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("webdav: HTTP %d: %s", e.Code, e.Message)
}

// PropStat is a single DAV:propstat element.
type PropStat struct {
	Prop   Prop
	Status Status
}

// Response is a single DAV:response element of a multistatus document.
type Response struct {
	Href      string
	PropStats []PropStat
	status    *Status
	location  string
}

func (r *Response) Path() (string, error) {
	if r.Href == "" {
		return "", fmt.Errorf("webdav: response missing href")
	}
	return r.Href, nil
}

// Err reports the top-level response status, if any, as an error.
func (r *Response) Err() error {
	if r.status != nil {
		return r.status.Err()
	}
	return nil
}

// DecodeProp scans every propstat with a successful status and decodes the
// first matching property into v. Returns ErrNotFound when absent so
// callers can distinguish "missing" from "malformed".
func (r *Response) DecodeProp(v interface{}) error {
	name, err := xmlNameOf(v)
	if err != nil {
		return err
	}
	for _, ps := range r.PropStats {
		if err := ps.Status.Err(); err != nil {
			continue
		}
		if raw := ps.Prop.Get(name); raw != nil {
			return raw.Decode(v)
		}
	}
	return ErrNotFound
}

func xmlNameOf(v interface{}) (xml.Name, error) {
	b, err := xml.Marshal(v)
	if err != nil {
		return xml.Name{}, err
	}
	var probe struct {
		XMLName xml.Name
	}
	if err := xml.Unmarshal(b, &probe); err != nil {
		return xml.Name{}, err
	}
	return probe.XMLName, nil
}

// MultiStatus is the decoded body of a 207 Multi-Status response.
type MultiStatus struct {
	Responses []Response
	SyncToken string
}

// ResourceType decodes DAV:resourcetype and can test membership against a
// protocol-specific collection type (e.g. CalDAV:calendar).
type ResourceType struct {
	Raw []RawXMLValue
}

func (rt ResourceType) Is(name xml.Name) bool {
	for _, r := range rt.Raw {
		if r.XMLName == name {
			return true
		}
	}
	return false
}

type DisplayName struct {
	XMLName xml.Name `xml:"DAV: displayname"`
	Name    string   `xml:",chardata"`
}

type GetETag struct {
	XMLName xml.Name `xml:"DAV: getetag"`
	ETag    string   `xml:",chardata"`
}

type GetContentLength struct {
	XMLName xml.Name `xml:"DAV: getcontentlength"`
	Length  int64     `xml:",chardata"`
}

type CurrentUserPrincipal struct {
	XMLName         xml.Name `xml:"DAV: current-user-principal"`
	Href            *Href    `xml:"href"`
	Unauthenticated *struct{} `xml:"unauthenticated"`
}

type CurrentUserPrivilegeSet struct {
	XMLName    xml.Name      `xml:"DAV: current-user-privilege-set"`
	Privileges []RawXMLValue `xml:"privilege"`
}

// PropertyUpdate is the body of a PROPPATCH request.
type PropertyUpdate struct {
	XMLName xml.Name `xml:"DAV: propertyupdate"`
	Set     []Set    `xml:"set"`
	Remove  []Remove `xml:"remove"`
}

type Set struct {
	Prop Prop `xml:"prop"`
}

type Remove struct {
	Prop Prop `xml:"prop"`
}

// PropFind is the body of a PROPFIND request.
type PropFind struct {
	XMLName  xml.Name `xml:"DAV: propfind"`
	Prop     *Prop    `xml:"prop,omitempty"`
	AllProp  *struct{} `xml:"allprop,omitempty"`
	PropName *struct{} `xml:"propname,omitempty"`
}

func NewPropNamePropFind(names ...xml.Name) *PropFind {
	prop := &Prop{}
	for _, n := range names {
		prop.Raw = append(prop.Raw, RawXMLValue{XMLName: n})
	}
	return &PropFind{Prop: prop}
}
