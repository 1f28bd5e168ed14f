// Package ical implements the parse/transform/build/edit layer over
// iCalendar (RFC 5545) bodies: the L2 "object transformer" named in the
// design. Every mutation is parse-modify-serialize over the existing
// github.com/emersion/go-ical component tree so that properties the
// domain record does not model (VALARM, ATTENDEE parameters, X-*,
// schedule status) survive untouched.
package ical

import "time"

// Status mirrors the VEVENT STATUS property.
type Status string

const (
	StatusConfirmed Status = "CONFIRMED"
	StatusTentative Status = "TENTATIVE"
	StatusCancelled Status = "CANCELLED"
)

// Attendee is one ATTENDEE property, with the parameters the spec
// requires to be preserved and surfaced.
type Attendee struct {
	Name     string
	Email    string
	Role     string
	PartStat string
}

// Event is the domain record described in §3.3: everything a caller needs
// without re-parsing the raw body, plus the raw body itself so writers
// can hand it back for a parse-modify-serialize edit.
type Event struct {
	UID          string
	Summary      string
	Start        time.Time
	End          time.Time
	AllDay       bool
	Description  string
	Location     string
	Timezone     string
	Attendees    []Attendee
	Organizer    string
	Status       Status
	IsRecurring  bool
	RRule        string
	RecurrenceID *time.Time
	ExDates      []time.Time

	Raw  []byte
	ETag string
	URL  string
}

// EventInput is the input to Build: a fresh event to create.
type EventInput struct {
	Title       string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Description string
	Location    string
	RRule       string
}

// EventChanges is the input to Update. A nil field leaves the
// corresponding property untouched; a non-nil field (including a pointer
// to an empty string) overwrites it.
type EventChanges struct {
	Title       *string
	Start       *time.Time
	End         *time.Time
	Description *string
	Location    *string
}
