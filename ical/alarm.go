package ical

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	goical "github.com/emersion/go-ical"
	"github.com/agentdav/bridge/daverr"
)

// AddAlarm appends a VALARM subcomponent to the first VEVENT. trigger
// accepts an iCalendar duration literal (-PT15M, PT30M, -P1D), a short
// form (15m, 1h, 1d, 2w, 30s), or a long form ("15 minutes", "1 hour",
// "1 day"). Unrecognized input fails the call per §4.5.4.
func AddAlarm(raw []byte, trigger, action, description string) ([]byte, error) {
	if action == "" {
		action = "DISPLAY"
	}
	if description == "" {
		description = "Reminder"
	}

	dur, err := parseTrigger(trigger)
	if err != nil {
		return nil, err
	}

	cal, comp, err := decodeFirstEvent(raw)
	if err != nil {
		return nil, err
	}

	alarm := &goical.Component{Name: goical.CompAlarm, Props: goical.Props{}}
	alarm.Props.SetText(goical.PropAction, action)
	alarm.Props.SetText(goical.PropDescription, description)
	trig := goical.NewProp(goical.PropTrigger)
	trig.Value = dur
	alarm.Props.Set(trig)

	comp.Children = append(comp.Children, alarm)

	return encodeCalendar(cal)
}

// RemoveAlarm removes the VALARM at 0-based position index. An
// out-of-range index raises a typed daverr.RangeError carrying the actual
// alarm count.
func RemoveAlarm(raw []byte, index int) ([]byte, error) {
	cal, comp, err := decodeFirstEvent(raw)
	if err != nil {
		return nil, err
	}

	alarms := alarmIndices(comp)
	if index < 0 || index >= len(alarms) {
		return nil, daverr.NewRangeError("alarm", index, len(alarms))
	}

	removeAt := alarms[index]
	comp.Children = append(comp.Children[:removeAt], comp.Children[removeAt+1:]...)

	return encodeCalendar(cal)
}

// RemoveAllAlarms removes every VALARM; a no-op (not an error) when none
// exist.
func RemoveAllAlarms(raw []byte) ([]byte, error) {
	cal, comp, err := decodeFirstEvent(raw)
	if err != nil {
		return nil, err
	}

	kept := comp.Children[:0]
	for _, c := range comp.Children {
		if c.Name != goical.CompAlarm {
			kept = append(kept, c)
		}
	}
	comp.Children = kept

	return encodeCalendar(cal)
}

func alarmIndices(comp *goical.Component) []int {
	var idx []int
	for i, c := range comp.Children {
		if c.Name == goical.CompAlarm {
			idx = append(idx, i)
		}
	}
	return idx
}

func encodeCalendar(cal *goical.Calendar) ([]byte, error) {
	var buf bytes.Buffer
	if err := goical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var (
	shortForm = regexp.MustCompile(`^(\d+)\s*(s|m|h|d|w)$`)
	longForm  = regexp.MustCompile(`^(\d+)\s*(second|minute|hour|day|week)s?$`)
	icalDur   = regexp.MustCompile(`^-?P(?:\d+W)?(?:\d+D)?(?:T(?:\d+H)?(?:\d+M)?(?:\d+S)?)?$`)
)

// parseTrigger normalizes a user-supplied trigger string into an
// iCalendar duration literal suitable as a TRIGGER value.
func parseTrigger(trigger string) (string, error) {
	t := strings.TrimSpace(trigger)
	if t == "" {
		return "", fmt.Errorf("ical: empty alarm trigger")
	}

	upper := strings.ToUpper(t)
	if icalDur.MatchString(upper) {
		return upper, nil
	}

	if m := shortForm.FindStringSubmatch(strings.ToLower(t)); m != nil {
		n, _ := strconv.Atoi(m[1])
		return fmt.Sprintf("-%s", durationLiteral(n, m[2])), nil
	}

	if m := longForm.FindStringSubmatch(strings.ToLower(t)); m != nil {
		n, _ := strconv.Atoi(m[1])
		unit := map[string]string{"second": "s", "minute": "m", "hour": "h", "day": "d", "week": "w"}[m[2]]
		return fmt.Sprintf("-%s", durationLiteral(n, unit)), nil
	}

	return "", fmt.Errorf("ical: unrecognized alarm trigger %q", trigger)
}

func durationLiteral(n int, unit string) string {
	switch unit {
	case "s":
		return fmt.Sprintf("PT%dS", n)
	case "m":
		return fmt.Sprintf("PT%dM", n)
	case "h":
		return fmt.Sprintf("PT%dH", n)
	case "d":
		return fmt.Sprintf("P%dD", n)
	case "w":
		return fmt.Sprintf("P%dW", n)
	}
	return fmt.Sprintf("PT%dM", n)
}
