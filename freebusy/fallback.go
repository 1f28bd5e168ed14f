package freebusy

import (
	"bytes"
	"strings"

	goical "github.com/emersion/go-ical"

	"github.com/agentdav/bridge/ical"
)

// FromEvents implements the fallback path of §4.9: drop any event whose
// TRANSP equals TRANSPARENT (OPAQUE is the default when absent) and
// convert each remaining event into a BUSY period. It reads TRANSP
// directly off the raw body since ical.Event does not carry it.
func FromEvents(events []*ical.Event) []Period {
	periods := make([]Period, 0, len(events))
	for _, ev := range events {
		if isTransparent(ev.Raw) {
			continue
		}
		periods = append(periods, Period{Start: ev.Start, End: ev.End, Type: Busy})
	}
	return periods
}

func isTransparent(raw []byte) bool {
	if len(raw) == 0 {
		return false
	}
	cal, err := goical.NewDecoder(bytes.NewReader(raw)).Decode()
	if err != nil {
		return false
	}
	for _, comp := range cal.Children {
		if comp.Name != goical.CompEvent {
			continue
		}
		if p := comp.Props.Get(goical.PropTransparency); p != nil {
			return strings.EqualFold(p.Value, "TRANSPARENT")
		}
	}
	return false
}
