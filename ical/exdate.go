package ical

import (
	"fmt"
	"time"

	goical "github.com/emersion/go-ical"
)

// AddExdate adds an EXDATE entry to the master VEVENT for instanceDate,
// implementing "delete one occurrence of a recurring event" without
// deleting the resource. Per §8.3, calling this on a non-recurring event
// fails loudly rather than silently doing nothing.
func AddExdate(raw []byte, instanceDate time.Time) ([]byte, error) {
	cal, comp, err := decodeFirstEvent(raw)
	if err != nil {
		return nil, err
	}

	if comp.Props.Get(goical.PropRecurrenceRule) == nil {
		return nil, fmt.Errorf("ical: add_exdate called on a non-recurring event")
	}

	allDay := false
	if dt := comp.Props.Get(goical.PropDateTimeStart); dt != nil {
		allDay = dt.Params.Get("VALUE") == "DATE"
	}

	p := goical.NewProp(goical.PropExceptionDates)
	if allDay {
		p.Params.Set("VALUE", "DATE")
		p.Value = instanceDate.Format("20060102")
	} else {
		p.SetDateTime(instanceDate.UTC())
	}
	comp.Props.Add(p)

	return encodeCalendar(cal)
}
