package ical

import (
	"bytes"
	"strings"
	"time"

	goical "github.com/emersion/go-ical"
	"github.com/rs/zerolog"
)

// Transform parses raw, extracts the first VEVENT, and populates an Event
// record. A missing UID, missing DTSTART, or an unparseable DTSTART is not
// an error: per §4.5.1 it is logged at debug here and yields (nil, false),
// and the caller skips the object.
func Transform(raw []byte, log zerolog.Logger) (*Event, bool) {
	cal, err := goical.NewDecoder(bytes.NewReader(raw)).Decode()
	if err != nil {
		log.Debug().Err(err).Msg("ical: failed to decode calendar object")
		return nil, false
	}

	var comp *goical.Component
	for _, c := range cal.Children {
		if c.Name == goical.CompEvent {
			comp = c
			break
		}
	}
	if comp == nil {
		log.Debug().Msg("ical: no VEVENT component found")
		return nil, false
	}

	uidProp := comp.Props.Get(goical.PropUID)
	if uidProp == nil || uidProp.Value == "" {
		log.Debug().Msg("ical: VEVENT missing UID")
		return nil, false
	}

	dtstartProp := comp.Props.Get(goical.PropDateTimeStart)
	if dtstartProp == nil {
		log.Debug().Str("uid", uidProp.Value).Msg("ical: VEVENT missing DTSTART")
		return nil, false
	}
	start, allDay, err := parseDateTimeProp(dtstartProp)
	if err != nil {
		log.Debug().Str("uid", uidProp.Value).Err(err).Msg("ical: unparseable DTSTART")
		return nil, false
	}

	ev := &Event{
		UID:    uidProp.Value,
		Start:  start,
		AllDay: allDay,
		Raw:    raw,
		Status: StatusConfirmed,
	}

	if p := comp.Props.Get(goical.PropSummary); p != nil {
		ev.Summary = p.Value
	}
	if p := comp.Props.Get(goical.PropDescription); p != nil {
		ev.Description = p.Value
	}
	if p := comp.Props.Get(goical.PropLocation); p != nil {
		ev.Location = p.Value
	}
	if p := comp.Props.Get(goical.PropDateTimeEnd); p != nil {
		end, _, err := parseDateTimeProp(p)
		if err == nil {
			ev.End = end
		}
	} else {
		ev.End = ev.Start
	}
	if p := comp.Props.Get(goical.PropStatus); p != nil {
		ev.Status = Status(strings.ToUpper(p.Value))
	}
	if p := comp.Props.Get(goical.PropOrganizer); p != nil {
		ev.Organizer = strings.TrimPrefix(p.Value, "mailto:")
	}
	if p := comp.Props.Get(goical.PropRecurrenceRule); p != nil {
		ev.RRule = p.Value
		ev.IsRecurring = true
	}
	if p := comp.Props.Get(goical.PropRecurrenceID); p != nil {
		if t, _, err := parseDateTimeProp(p); err == nil {
			ev.RecurrenceID = &t
		}
	}
	for _, p := range comp.Props.Values(goical.PropExceptionDates) {
		ev.ExDates = append(ev.ExDates, parseExceptionDates(p)...)
	}

	for _, p := range comp.Props.Values(goical.PropAttendee) {
		a := Attendee{
			Email:    strings.TrimPrefix(p.Value, "mailto:"),
			Name:     p.Params.Get("CN"),
			Role:     p.Params.Get("ROLE"),
			PartStat: p.Params.Get("PARTSTAT"),
		}
		ev.Attendees = append(ev.Attendees, a)
	}

	return ev, true
}

// parseExceptionDates parses one EXDATE property, which may carry a
// comma-separated list of date(-time) values sharing the property's
// VALUE/TZID parameters. Unparseable entries are skipped rather than
// failing the whole property, matching Transform's tolerant style.
func parseExceptionDates(p *goical.Prop) []time.Time {
	var out []time.Time
	for _, part := range strings.Split(p.Value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		single := &goical.Prop{Name: p.Name, Params: p.Params, Value: part}
		if t, _, err := parseDateTimeProp(single); err == nil {
			out = append(out, t)
		}
	}
	return out
}

// parseDateTimeProp parses a DTSTART/DTEND/RECURRENCE-ID value, reporting
// whether it was a DATE-only (all-day) value.
func parseDateTimeProp(p *goical.Prop) (time.Time, bool, error) {
	if strings.EqualFold(p.Params.Get("VALUE"), "DATE") || len(p.Value) == 8 {
		t, err := time.Parse("20060102", p.Value)
		return t, true, err
	}
	tzid := p.Params.Get("TZID")
	if tzid != "" {
		loc, err := time.LoadLocation(tzid)
		if err == nil {
			t, err := time.ParseInLocation("20060102T150405", p.Value, loc)
			return t, false, err
		}
	}
	if strings.HasSuffix(p.Value, "Z") {
		t, err := time.Parse("20060102T150405Z", p.Value)
		return t, false, err
	}
	t, err := time.Parse("20060102T150405", p.Value)
	return t, false, err
}
