package ical

import (
	"bytes"
	"time"

	goical "github.com/emersion/go-ical"
	"github.com/google/uuid"
)

const prodID = "-//agentdav/bridge//EN"

// Build emits a fresh VCALENDAR/VEVENT per §4.5.2: VERSION:2.0, a product
// identifier, a freshly generated UUIDv4 UID, a current DTSTAMP, SUMMARY,
// DTSTART/DTEND, and whichever optional fields are populated.
func Build(input EventInput) ([]byte, error) {
	cal := &goical.Calendar{Component: &goical.Component{Name: goical.CompCalendar, Props: goical.Props{}}}
	cal.Props.SetText(goical.PropVersion, "2.0")
	cal.Props.SetText(goical.PropProductID, prodID)

	comp := &goical.Component{Name: goical.CompEvent, Props: goical.Props{}}
	comp.Props.SetText(goical.PropUID, uuid.NewString())

	stamp := goical.NewProp(goical.PropDateTimeStamp)
	stamp.SetDateTime(time.Now().UTC())
	comp.Props.Set(stamp)

	comp.Props.SetText(goical.PropSummary, input.Title)

	setDateProp(comp, goical.PropDateTimeStart, input.Start, input.AllDay)
	setDateProp(comp, goical.PropDateTimeEnd, input.End, input.AllDay)

	if input.Description != "" {
		comp.Props.SetText(goical.PropDescription, input.Description)
	}
	if input.Location != "" {
		comp.Props.SetText(goical.PropLocation, input.Location)
	}
	if input.RRule != "" {
		comp.Props.SetText(goical.PropRecurrenceRule, input.RRule)
	}

	seq := goical.NewProp(goical.PropSequence)
	seq.SetText("0")
	comp.Props.Set(seq)

	cal.Children = append(cal.Children, comp)

	var buf bytes.Buffer
	if err := goical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setDateProp(comp *goical.Component, name string, t time.Time, allDay bool) {
	p := goical.NewProp(name)
	if allDay {
		p.Params.Set("VALUE", "DATE")
		p.Value = t.Format("20060102")
	} else {
		p.SetDateTime(t.UTC())
	}
	comp.Props.Set(p)
}
