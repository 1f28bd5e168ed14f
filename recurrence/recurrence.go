// Package recurrence expands a recurring master VEVENT into occurrences
// within a window, honoring RECURRENCE-ID overrides and cancellations, as
// described in §4.6 of the design.
package recurrence

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/teambition/rrule-go"

	"github.com/agentdav/bridge/ical"
)

// MaxOccurrencesPerMaster caps RRULE expansion as a safety net against
// unbounded rules (e.g. FREQ=SECONDLY with no COUNT/UNTIL).
const MaxOccurrencesPerMaster = 100

// DisplayCap truncates the final, sorted result; truncation is logged at
// warn.
const DisplayCap = 50

// Expand consults master (the series VEVENT with no RECURRENCE-ID) and
// overrides (VEVENTs sharing its UID, each carrying a RECURRENCE-ID), and
// returns the occurrences of master that fall in [start, end], with
// cancelled occurrences dropped and overridden occurrences replaced.
func Expand(master *ical.Event, overrides []*ical.Event, start, end time.Time, log zerolog.Logger) ([]*ical.Event, error) {
	if master.RRule == "" {
		if overlaps(master.Start, master.End, start, end) {
			return []*ical.Event{master}, nil
		}
		return nil, nil
	}

	rule, err := rrule.StrToRRule("DTSTART:" + master.Start.UTC().Format("20060102T150405Z") + "\nRRULE:" + master.RRule)
	if err != nil {
		return nil, err
	}

	duration := master.End.Sub(master.Start)
	occStarts := rule.Between(start.Add(-duration), end, true)
	occStarts = filterExcludedDates(occStarts, master.ExDates)
	if len(occStarts) > MaxOccurrencesPerMaster {
		occStarts = occStarts[:MaxOccurrencesPerMaster]
	}

	overrideByRecID := make(map[int64]*ical.Event, len(overrides))
	for _, o := range overrides {
		if o.RecurrenceID == nil {
			continue
		}
		overrideByRecID[o.RecurrenceID.UTC().Unix()] = o
	}

	out := make([]*ical.Event, 0, len(occStarts))
	for _, occStart := range occStarts {
		occEnd := occStart.Add(duration)
		if !overlaps(occStart, occEnd, start, end) {
			continue
		}

		if ov, ok := overrideByRecID[occStart.UTC().Unix()]; ok {
			if ov.Status == ical.StatusCancelled {
				continue
			}
			out = append(out, ov)
			continue
		}

		occ := *master
		occ.Start = occStart
		occ.End = occEnd
		occ.IsRecurring = false
		occ.RecurrenceID = &occStart
		out = append(out, &occ)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })

	if len(out) > DisplayCap {
		log.Warn().
			Str("uid", master.UID).
			Int("expanded", len(out)).
			Int("cap", DisplayCap).
			Msg("recurrence: truncating expansion to display cap")
		out = out[:DisplayCap]
	}

	return out, nil
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// filterExcludedDates drops any instance that matches an EXDATE, per
// §4.6 ("Expand the master's RRULE honoring EXDATEs..."). Comparison is
// by UTC second, matching how occurrences and RECURRENCE-ID overrides
// are already keyed in Expand.
func filterExcludedDates(instances, exdates []time.Time) []time.Time {
	if len(exdates) == 0 {
		return instances
	}
	excluded := make(map[int64]bool, len(exdates))
	for _, d := range exdates {
		excluded[d.UTC().Unix()] = true
	}
	out := make([]time.Time, 0, len(instances))
	for _, inst := range instances {
		if !excluded[inst.UTC().Unix()] {
			out = append(out, inst)
		}
	}
	return out
}
