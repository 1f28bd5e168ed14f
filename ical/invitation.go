package ical

import (
	"fmt"
	"strings"

	goical "github.com/emersion/go-ical"
)

// SetAttendeePartStat finds the ATTENDEE property matching userEmail
// (case-insensitive, ignoring a mailto: prefix) on the first VEVENT and
// sets its PARTSTAT parameter, preserving every other ATTENDEE parameter.
func SetAttendeePartStat(raw []byte, userEmail, partstat string) ([]byte, error) {
	cal, comp, err := decodeFirstEvent(raw)
	if err != nil {
		return nil, err
	}

	target := strings.TrimPrefix(strings.ToLower(userEmail), "mailto:")
	found := false
	for _, p := range comp.Props.Values(goical.PropAttendee) {
		addr := strings.TrimPrefix(strings.ToLower(p.Value), "mailto:")
		if addr == target {
			p.Params.Set("PARTSTAT", strings.ToUpper(partstat))
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("ical: no ATTENDEE matching %q", userEmail)
	}

	return encodeCalendar(cal)
}
