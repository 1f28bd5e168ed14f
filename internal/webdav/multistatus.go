package webdav

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// wire-level shapes used only to drive encoding/xml; DecodeMultiStatus
// converts these into the exported Response/MultiStatus/Status types so the
// rest of the package never has to think about xml tags.
type xmlStatus string

func (s xmlStatus) parse() *Status {
	parts := strings.SplitN(strings.TrimSpace(string(s)), " ", 3)
	if len(parts) < 2 {
		return nil
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil
	}
	text := ""
	if len(parts) == 3 {
		text = parts[2]
	}
	return &Status{Code: code, Text: text}
}

type xmlPropStat struct {
	Prop   Prop      `xml:"DAV: prop"`
	Status xmlStatus `xml:"DAV: status"`
}

type xmlResponse struct {
	Href      string        `xml:"DAV: href"`
	PropStats []xmlPropStat `xml:"DAV: propstat"`
	Status    xmlStatus     `xml:"DAV: status"`
	Location  *Href         `xml:"DAV: location>href"`
}

type xmlMultiStatus struct {
	XMLName   xml.Name      `xml:"DAV: multistatus"`
	Responses []xmlResponse `xml:"response"`
	SyncToken string        `xml:"sync-token"`
}

// DecodeMultiStatus parses a 207 Multi-Status response body.
func DecodeMultiStatus(r io.Reader) (*MultiStatus, error) {
	var wire xmlMultiStatus
	if err := xml.NewDecoder(r).Decode(&wire); err != nil {
		return nil, fmt.Errorf("webdav: decoding multistatus: %w", err)
	}

	ms := &MultiStatus{SyncToken: wire.SyncToken}
	for _, wr := range wire.Responses {
		resp := Response{Href: wr.Href, location: ""}
		if wr.Location != nil {
			resp.location = wr.Location.Path
		}
		if st := wr.Status.parse(); st != nil {
			resp.status = st
		}
		for _, wp := range wr.PropStats {
			resp.PropStats = append(resp.PropStats, PropStat{
				Prop:   wp.Prop,
				Status: *statusOrOK(wp.Status.parse()),
			})
		}
		ms.Responses = append(ms.Responses, resp)
	}
	return ms, nil
}

func statusOrOK(s *Status) *Status {
	if s != nil {
		return s
	}
	return &Status{Code: 200, Text: "OK"}
}
