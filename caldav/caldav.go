// Package caldav is a CalDAV (RFC 4791) client: calendar-home-set
// discovery, calendar collection listing, time-range and multiget
// REPORTs, ETag-conditional object writes and the free-busy-query REPORT.
package caldav

import (
	"encoding/xml"
	"time"
)

var (
	CalendarHomeSetName                = xml.Name{Space: "urn:ietf:params:xml:ns:caldav", Local: "calendar-home-set"}
	CalendarName                       = xml.Name{Space: "urn:ietf:params:xml:ns:caldav", Local: "calendar"}
	calendarDescriptionName            = xml.Name{Space: "urn:ietf:params:xml:ns:caldav", Local: "calendar-description"}
	maxResourceSizeName                = xml.Name{Space: "urn:ietf:params:xml:ns:caldav", Local: "max-resource-size"}
	supportedCalendarComponentSetName  = xml.Name{Space: "urn:ietf:params:xml:ns:caldav", Local: "supported-calendar-component-set"}
	calendarColorName                  = xml.Name{Space: "http://apple.com/ns/ical/", Local: "calendar-color"}
	calendarTimezoneName               = xml.Name{Space: "urn:ietf:params:xml:ns:caldav", Local: "calendar-timezone"}
	scheduleInboxURLName               = xml.Name{Space: "urn:ietf:params:xml:ns:caldav", Local: "schedule-inbox-URL"}
)

// Calendar describes a single calendar collection on the server.
type Calendar struct {
	Path                  string
	Name                  string
	Description           string
	MaxResourceSize       int64
	SupportedComponentSet []string
	Color                 string
	Timezone              string
	CTag                  string
}

// CalendarObject is a single iCalendar resource inside a Calendar.
type CalendarObject struct {
	Path          string
	ModTime       time.Time
	ContentLength int64
	ETag          string
	Data          []byte
}

// PutCalendarObjectOptions carries the optimistic-concurrency headers for a
// write. IfNoneMatch "*" asserts creation; IfMatch asserts the object is
// still at the given ETag.
type PutCalendarObjectOptions struct {
	IfMatch     string
	IfNoneMatch string
}

// CompFilter is a calendar-query filter over a single component (e.g. a
// VEVENT time-range filter).
type CompFilter struct {
	Name       string
	Start, End time.Time
}

// FreeBusyQuery is a VFREEBUSY REPORT request body.
type FreeBusyQuery struct {
	Start, End time.Time
}

// FreeBusyPeriod is one BUSY/BUSY-TENTATIVE/BUSY-UNAVAILABLE interval
// returned by a VFREEBUSY REPORT.
type FreeBusyPeriod struct {
	Start, End time.Time
	Type       string
}
