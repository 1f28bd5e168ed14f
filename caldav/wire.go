package caldav

import (
	"encoding/xml"
	"time"

	"github.com/agentdav/bridge/internal/webdav"
)

const calNS = "urn:ietf:params:xml:ns:caldav"

// dateWithUTCTime formats a time.Time the way CalDAV REPORT filters expect:
// a floating or UTC iCalendar DATE-TIME, always normalized to UTC here so
// every outgoing filter is unambiguous. A zero time produces no attribute,
// which leaves that side of a time-range open.
type dateWithUTCTime time.Time

func (t dateWithUTCTime) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	if time.Time(t).IsZero() {
		return xml.Attr{}, nil
	}
	return xml.Attr{Name: name, Value: time.Time(t).UTC().Format("20060102T150405Z")}, nil
}

type comp struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:caldav comp"`
	Name    string   `xml:"name,attr"`
	Allprop *struct{} `xml:"allprop,omitempty"`
	Prop    []prop    `xml:"prop,omitempty"`
	Allcomp *struct{} `xml:"allcomp,omitempty"`
	Comp    []comp    `xml:"comp,omitempty"`
}

type prop struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:caldav prop"`
	Name    string   `xml:"name,attr"`
}

type expand struct {
	XMLName xml.Name        `xml:"urn:ietf:params:xml:ns:caldav expand"`
	Start   dateWithUTCTime `xml:"start,attr"`
	End     dateWithUTCTime `xml:"end,attr"`
}

type calendarDataReq struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:caldav calendar-data"`
	Comp    *comp    `xml:"comp,omitempty"`
	Expand  *expand  `xml:"expand,omitempty"`
}

type calendarDataResp struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:caldav calendar-data"`
	Data    []byte   `xml:",chardata"`
}

type timeRange struct {
	XMLName xml.Name        `xml:"urn:ietf:params:xml:ns:caldav time-range"`
	Start   dateWithUTCTime `xml:"start,attr,omitempty"`
	End     dateWithUTCTime `xml:"end,attr,omitempty"`
}

type negateCondition bool

func (n negateCondition) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	v := "no"
	if n {
		v = "yes"
	}
	return xml.Attr{Name: name, Value: v}, nil
}

type textMatch struct {
	Text            string          `xml:",chardata"`
	NegateCondition negateCondition `xml:"negate-condition,attr,omitempty"`
}

type paramFilter struct {
	XMLName      xml.Name   `xml:"urn:ietf:params:xml:ns:caldav param-filter"`
	Name         string     `xml:"name,attr"`
	IsNotDefined *struct{}  `xml:"is-not-defined,omitempty"`
	TextMatch    *textMatch `xml:"text-match,omitempty"`
}

type propFilter struct {
	XMLName      xml.Name      `xml:"urn:ietf:params:xml:ns:caldav prop-filter"`
	Name         string        `xml:"name,attr"`
	IsNotDefined *struct{}     `xml:"is-not-defined,omitempty"`
	TimeRange    *timeRange    `xml:"time-range,omitempty"`
	TextMatch    *textMatch    `xml:"text-match,omitempty"`
	ParamFilter  []paramFilter `xml:"param-filter,omitempty"`
}

type compFilter struct {
	XMLName      xml.Name     `xml:"urn:ietf:params:xml:ns:caldav comp-filter"`
	Name         string       `xml:"name,attr"`
	IsNotDefined *struct{}    `xml:"is-not-defined,omitempty"`
	TimeRange    *timeRange   `xml:"time-range,omitempty"`
	PropFilters  []propFilter `xml:"prop-filter,omitempty"`
	CompFilters  []compFilter `xml:"comp-filter,omitempty"`
}

type filter struct {
	XMLName    xml.Name   `xml:"urn:ietf:params:xml:ns:caldav filter"`
	CompFilter compFilter `xml:"comp-filter"`
}

type calendarQuery struct {
	XMLName xml.Name     `xml:"urn:ietf:params:xml:ns:caldav calendar-query"`
	Prop    *webdav.Prop `xml:"DAV: prop"`
	Filter  filter       `xml:"filter"`
}

type calendarMultiget struct {
	XMLName xml.Name       `xml:"urn:ietf:params:xml:ns:caldav calendar-multiget"`
	Hrefs   []webdav.Href  `xml:"href"`
	Prop    *webdav.Prop   `xml:"DAV: prop"`
}

type freeBusyQuery struct {
	XMLName   xml.Name  `xml:"urn:ietf:params:xml:ns:caldav free-busy-query"`
	TimeRange timeRange `xml:"time-range"`
}

type calendarHomeSet struct {
	XMLName xml.Name    `xml:"urn:ietf:params:xml:ns:caldav calendar-home-set"`
	Href    webdav.Href `xml:"href"`
}

type scheduleInboxURL struct {
	XMLName xml.Name    `xml:"urn:ietf:params:xml:ns:caldav schedule-inbox-URL"`
	Href    webdav.Href `xml:"href"`
}

type calendarDescription struct {
	XMLName     xml.Name `xml:"urn:ietf:params:xml:ns:caldav calendar-description"`
	Description string   `xml:",chardata"`
}

type maxResourceSize struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:caldav max-resource-size"`
	Size    int64    `xml:",chardata"`
}

type compName struct {
	Name string `xml:"name,attr"`
}

type supportedCalendarComponentSet struct {
	XMLName xml.Name   `xml:"urn:ietf:params:xml:ns:caldav supported-calendar-component-set"`
	Comp    []compName `xml:"comp"`
}

type calendarColor struct {
	XMLName xml.Name `xml:"http://apple.com/ns/ical/ calendar-color"`
	Color   string   `xml:",chardata"`
}

type calendarTimezone struct {
	XMLName  xml.Name `xml:"urn:ietf:params:xml:ns:caldav calendar-timezone"`
	Timezone string   `xml:",chardata"`
}

var calendarPropFind = webdav.NewPropNamePropFind(
	webdav.ResourceTypeName,
	webdav.DisplayNameName,
	webdav.CTagName,
	calendarDescriptionName,
	maxResourceSizeName,
	supportedCalendarComponentSetName,
	calendarColorName,
	calendarTimezoneName,
)
