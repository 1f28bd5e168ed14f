package freebusy

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	goical "github.com/emersion/go-ical"
)

// ParseVFreeBusy parses a VFREEBUSY response body into busy periods. The
// body may be raw iCalendar text or, as some servers send it, an XML
// document carrying the iCalendar text in a calendar-data element; in the
// latter case the first non-empty calendar-data element is parsed.
func ParseVFreeBusy(raw []byte) ([]Period, error) {
	if trimmed := bytes.TrimSpace(raw); bytes.HasPrefix(trimmed, []byte("<")) {
		dec := xml.NewDecoder(bytes.NewReader(trimmed))
		var data string
		for data == "" {
			tok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("freebusy: no calendar-data in XML VFREEBUSY body: %w", err)
			}
			if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "calendar-data" {
				dec.DecodeElement(&data, &se)
			}
		}
		raw = []byte(data)
	}
	cal, err := goical.NewDecoder(bytes.NewReader(raw)).Decode()
	if err != nil {
		return nil, fmt.Errorf("freebusy: failed to parse VFREEBUSY body: %w", err)
	}

	var periods []Period
	for _, comp := range cal.Children {
		if comp.Name != goical.CompFreeBusy {
			continue
		}
		for _, p := range comp.Props.Values(goical.PropFreeBusy) {
			parsed, err := parseFreeBusyValue(p)
			if err != nil {
				continue
			}
			periods = append(periods, parsed...)
		}
	}
	if periods == nil {
		return nil, fmt.Errorf("freebusy: no VFREEBUSY component found")
	}
	return periods, nil
}

func parseFreeBusyValue(p *goical.Prop) ([]Period, error) {
	fbType := PeriodType(strings.ToUpper(p.Params.Get("FBTYPE")))
	if fbType == "" {
		fbType = Busy
	}

	var out []Period
	for _, part := range strings.Split(p.Value, ",") {
		bounds := strings.SplitN(part, "/", 2)
		if len(bounds) != 2 {
			continue
		}
		start, err := time.Parse("20060102T150405Z", bounds[0])
		if err != nil {
			continue
		}
		var end time.Time
		if strings.HasPrefix(bounds[1], "P") || strings.HasPrefix(bounds[1], "-P") {
			dur, err := parseISODuration(bounds[1])
			if err != nil {
				continue
			}
			end = start.Add(dur)
		} else {
			end, err = time.Parse("20060102T150405Z", bounds[1])
			if err != nil {
				continue
			}
		}
		out = append(out, Period{Start: start, End: end, Type: fbType})
	}
	return out, nil
}

// parseISODuration parses a minimal subset of ISO 8601 durations as used
// in FREEBUSY period values (PnDTnHnMnS).
func parseISODuration(s string) (time.Duration, error) {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "-"), "P")

	var d time.Duration
	num := ""
	inTime := false
	for _, r := range s {
		switch {
		case r == 'T':
			inTime = true
		case r >= '0' && r <= '9':
			num += string(r)
		default:
			n := 0
			fmt.Sscanf(num, "%d", &n)
			switch r {
			case 'D':
				d += time.Duration(n) * 24 * time.Hour
			case 'W':
				d += time.Duration(n) * 7 * 24 * time.Hour
			case 'H':
				d += time.Duration(n) * time.Hour
			case 'M':
				if inTime {
					d += time.Duration(n) * time.Minute
				}
			case 'S':
				d += time.Duration(n) * time.Second
			}
			num = ""
		}
	}
	if neg {
		d = -d
	}
	return d, nil
}
