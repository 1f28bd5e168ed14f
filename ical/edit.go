package ical

import (
	"bytes"
	"strconv"
	"time"

	goical "github.com/emersion/go-ical"
	"github.com/agentdav/bridge/daverr"
)

// Update parses raw, applies only the fields set in changes, increments
// SEQUENCE, refreshes DTSTAMP, refreshes LAST-MODIFIED iff it was already
// present, and re-serializes. VALARM/ATTENDEE/X-* properties are never
// touched because they live untouched in the same component tree that
// gets re-encoded. For a recurring master, the RRULE must still be
// present after serialization; its disappearance is a programming bug
// (daverr.Internal), not a silent no-op.
func Update(raw []byte, changes EventChanges) ([]byte, error) {
	cal, comp, err := decodeFirstEvent(raw)
	if err != nil {
		return nil, err
	}

	hadRRule := comp.Props.Get(goical.PropRecurrenceRule) != nil

	if changes.Title != nil {
		comp.Props.SetText(goical.PropSummary, *changes.Title)
	}
	if changes.Description != nil {
		comp.Props.SetText(goical.PropDescription, *changes.Description)
	}
	if changes.Location != nil {
		comp.Props.SetText(goical.PropLocation, *changes.Location)
	}
	if changes.Start != nil {
		allDay := comp.Props.Get(goical.PropDateTimeStart) != nil &&
			comp.Props.Get(goical.PropDateTimeStart).Params.Get("VALUE") == "DATE"
		setDateProp(comp, goical.PropDateTimeStart, *changes.Start, allDay)
	}
	if changes.End != nil {
		allDay := comp.Props.Get(goical.PropDateTimeEnd) != nil &&
			comp.Props.Get(goical.PropDateTimeEnd).Params.Get("VALUE") == "DATE"
		setDateProp(comp, goical.PropDateTimeEnd, *changes.End, allDay)
	}

	incrementSequence(comp)

	stamp := goical.NewProp(goical.PropDateTimeStamp)
	stamp.SetDateTime(time.Now().UTC())
	comp.Props.Set(stamp)

	if comp.Props.Get(goical.PropLastModified) != nil {
		lm := goical.NewProp(goical.PropLastModified)
		lm.SetDateTime(time.Now().UTC())
		comp.Props.Set(lm)
	}

	if hadRRule && comp.Props.Get(goical.PropRecurrenceRule) == nil {
		return nil, daverr.NewInternal("RRULE vanished from recurring VEVENT across update_ical")
	}

	var buf bytes.Buffer
	if err := goical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func incrementSequence(comp *goical.Component) {
	seq := 0
	if p := comp.Props.Get(goical.PropSequence); p != nil {
		if n, err := strconv.Atoi(p.Value); err == nil {
			seq = n
		}
	}
	p := goical.NewProp(goical.PropSequence)
	p.SetText(strconv.Itoa(seq + 1))
	comp.Props.Set(p)
}

func decodeFirstEvent(raw []byte) (*goical.Calendar, *goical.Component, error) {
	cal, err := goical.NewDecoder(bytes.NewReader(raw)).Decode()
	if err != nil {
		return nil, nil, err
	}
	for _, c := range cal.Children {
		if c.Name == goical.CompEvent {
			return cal, c, nil
		}
	}
	return nil, nil, daverr.NewInternal("no VEVENT component in raw calendar object")
}

